package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/docsearch/core/document"
)

var (
	watchMatchCase  bool
	watchWholeWords bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <query> <path>...",
	Short: "Search documents and search them again when they change",
	Long: `Search plain-text documents like the search command, then keep watching
them. Whenever a document changes its results are cleared, the file is read
again and the document is searched again.

The config files are watched as well, so the log level can be changed while
the command runs. Stop with Ctrl-C.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchMatchCase, "match-case", "c", false, "Match letter case exactly")
	watchCmd.Flags().BoolVarP(&watchWholeWords, "whole-words", "w", false, "Match whole words only")
}

func runWatch(cmd *cobra.Command, args []string) error {
	query, paths := args[0], args[1:]

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := currentConfig()
	s, err := newSession(ctx, cfg, paths)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := document.SearchOptions{MatchCase: watchMatchCase, WholeWords: watchWholeWords}
	out := cmd.OutOrStdout()
	p := newPalette(out)

	total, err := s.search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	fmt.Fprintf(out, "%sWatching%s %s for %q, %s found\n",
		p.bold, p.reset, plural(len(s.docs), "document", "documents"), query,
		plural(total, "match", "matches"))

	w, err := document.NewWatcher(document.WatchConfig{
		Debounce:        cfg.Document.WatchDebounce,
		ExcludePatterns: cfg.Document.Exclude,
		Logger:          s.logger,
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	for _, od := range s.docs {
		if err := w.Add(od.doc.Path()); err != nil {
			return err
		}
	}

	events, err := w.Start(ctx)
	if err != nil {
		return err
	}

	if configManager != nil {
		go watchConfig(ctx, s.logger)
	}

	return watchLoop(ctx, s, events, out, p, query, opts)
}

func watchConfig(ctx context.Context, logger *slog.Logger) {
	if err := configManager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("config watch stopped", "error", err)
	}
}

// watchLoop searches a document again for every change event until ctx ends
// or the event channel closes.
func watchLoop(ctx context.Context, s *session, events <-chan document.ChangeEvent, out io.Writer, p palette, query string, opts document.SearchOptions) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}

			od, known := s.byPath[event.Path]
			if !known {
				continue
			}

			stamp := event.Time.Format(time.TimeOnly)
			if event.Operation == document.OpDelete || event.Operation == document.OpRename {
				if err := s.ctrl.ClearResults(ctx, od.id); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s%s%s %s %sremoved%s\n", p.gray, stamp, p.reset, od.doc.Title(), p.yellow, p.reset)
				continue
			}

			n, err := s.refresh(ctx, od, query, opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("search again failed", "path", event.Path, "error", err)
				continue
			}
			fmt.Fprintf(out, "%s%s%s %s %s%s%s\n", p.gray, stamp, p.reset, od.doc.Title(),
				p.green, plural(n, "match", "matches"), p.reset)
		}
	}
}
