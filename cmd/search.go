package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adalundhe/docsearch/core/document"
	"github.com/adalundhe/docsearch/core/search/model"
	"github.com/adalundhe/docsearch/core/search/results"
	"github.com/adalundhe/docsearch/core/search/snippet"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// =============================================================================
// Search Command Flags
// =============================================================================

var (
	searchMatchCase  bool
	searchWholeWords bool
	searchPage       int
	searchNext       bool
	searchPrevious   bool
	searchJSON       bool
	searchStats      bool
	searchSnippets   bool
)

// =============================================================================
// Search Command
// =============================================================================

// searchCmd represents the search command.
var searchCmd = &cobra.Command{
	Use:   "search <query> <path>...",
	Short: "Search documents page by page",
	Long: `Search plain-text documents and print the matches grouped by document,
with the page of every match and the text around it.

Paths may be files or directories. Directories are walked and filtered by the
document include and exclude patterns of the config.

With --page the command instead prints, for every document, the match that
next (or previous) navigation reaches from that page.

Examples:
  docsearch search needle notes/
  docsearch search --match-case --whole-words Go book.txt
  docsearch search --page 12 --previous needle book.txt
  docsearch search --json needle notes/ | jq '.documents'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVarP(&searchMatchCase, "match-case", "c", false, "Match letter case exactly")
	searchCmd.Flags().BoolVarP(&searchWholeWords, "whole-words", "w", false, "Match whole words only")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 0, "Navigate from this page instead of listing every match")
	searchCmd.Flags().BoolVarP(&searchNext, "next", "n", false, "Navigate to the next match (default)")
	searchCmd.Flags().BoolVar(&searchPrevious, "previous", false, "Navigate to the previous match")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output results as JSON")
	searchCmd.Flags().BoolVar(&searchStats, "stats", false, "Print cache statistics")
	searchCmd.Flags().BoolVar(&searchSnippets, "snippets", true, "Show the text around every match")
	searchCmd.MarkFlagsMutuallyExclusive("next", "previous")
}

// =============================================================================
// Search Execution
// =============================================================================

func runSearch(cmd *cobra.Command, args []string) error {
	query, paths := args[0], args[1:]

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	navigating := searchPage != 0 || searchNext || searchPrevious
	if navigating && searchPage < 0 {
		return fmt.Errorf("invalid page %d", searchPage)
	}

	s, err := newSession(ctx, currentConfig(), paths)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := document.SearchOptions{MatchCase: searchMatchCase, WholeWords: searchWholeWords}
	total, err := s.search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := &searchOutput{
		Query:      query,
		MatchCase:  opts.MatchCase,
		WholeWords: opts.WholeWords,
		Total:      total,
		Searched:   len(s.docs),
	}

	if navigating {
		out.Navigation, err = navigate(ctx, s)
	} else {
		out.Documents, err = s.snapshot(ctx, searchSnippets, s.snippetWait())
	}
	if err != nil {
		return err
	}

	if searchStats {
		out.Stats = s.stats()
	}

	return outputSearchResults(cmd.OutOrStdout(), out)
}

// navigate finds the match reached from the requested page in every document
// that has results.
func navigate(ctx context.Context, s *session) ([]navigationOutput, error) {
	dir := results.Next
	if searchPrevious {
		dir = results.Previous
	}
	page := searchPage
	if page == 0 {
		page = 1
	}

	var found []navigationOutput
	for _, od := range s.docs {
		index, match, err := s.ctrl.FindResult(ctx, od.id, model.ModelIndex{}, page, dir)
		if err != nil {
			return nil, err
		}
		if !index.IsValid() {
			continue
		}

		nav := navigationOutput{
			Path:      od.doc.Path(),
			Title:     od.doc.Title(),
			Direction: dir.String(),
			From:      page,
			Row:       index.Row,
			Match:     matchOutput{Page: match.Page, Rect: match.Rect},
		}
		if searchSnippets {
			matched, surrounding, err := od.doc.SearchContext(ctx, match.Page, match.Rect)
			if err != nil {
				s.logger.Debug("no context for match", "path", od.doc.Path(), "page", match.Page, "error", err)
			}
			nav.Match.Text = matched
			nav.Match.Context = surrounding
		}
		found = append(found, nav)
	}
	return found, nil
}

// =============================================================================
// Output Formatting
// =============================================================================

// searchOutput is the JSON output structure.
type searchOutput struct {
	Query      string             `json:"query"`
	MatchCase  bool               `json:"match_case"`
	WholeWords bool               `json:"whole_words"`
	Total      int                `json:"total_matches"`
	Searched   int                `json:"documents_searched"`
	Documents  []viewOutput       `json:"documents,omitempty"`
	Navigation []navigationOutput `json:"navigation,omitempty"`
	Stats      *statsOutput       `json:"stats,omitempty"`
}

// viewOutput is one document row of the result tree.
type viewOutput struct {
	View    uint64        `json:"view"`
	Title   string        `json:"title"`
	Path    string        `json:"path"`
	Count   int           `json:"count"`
	Matches []matchOutput `json:"matches"`
}

// matchOutput is one match row of the result tree.
type matchOutput struct {
	Page    int          `json:"page"`
	Rect    results.Rect `json:"rect"`
	Text    string       `json:"text,omitempty"`
	Context string       `json:"context,omitempty"`
}

// navigationOutput is the match navigation reaches in one document.
type navigationOutput struct {
	Path      string      `json:"path"`
	Title     string      `json:"title"`
	Direction string      `json:"direction"`
	From      int         `json:"from_page"`
	Row       int         `json:"row"`
	Match     matchOutput `json:"match"`
}

type statsOutput struct {
	Snippets     snippet.StatsSnapshot   `json:"snippets"`
	SnippetCost  int64                   `json:"snippet_cost"`
	SnippetLimit int64                   `json:"snippet_limit"`
	Pages        document.PageCacheStats `json:"pages"`
}

func outputSearchResults(w io.Writer, out *searchOutput) error {
	if searchJSON {
		return outputJSONResults(w, out)
	}
	outputRichResults(w, newPalette(w), out)
	return nil
}

func outputJSONResults(w io.Writer, out *searchOutput) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// palette holds the escape codes for one writer. It is empty when the writer
// is not a terminal.
type palette struct {
	reset, bold, cyan, yellow, green, gray string
}

func newPalette(w io.Writer) palette {
	if !isTerminal(w) {
		return palette{}
	}
	return palette{
		reset:  colorReset,
		bold:   colorBold,
		cyan:   colorCyan,
		yellow: colorYellow,
		green:  colorGreen,
		gray:   colorGray,
	}
}

func outputRichResults(w io.Writer, p palette, out *searchOutput) {
	fmt.Fprintf(w, "%s%sSearch Results%s\n", p.bold, p.cyan, p.reset)
	fmt.Fprintf(w, "%sQuery:%s %s%s\n", p.gray, p.reset, out.Query, searchFlagsSuffix(out))
	fmt.Fprintf(w, "%sFound:%s %s in %s of %s\n", p.gray, p.reset,
		plural(out.Total, "match", "matches"),
		plural(countWithMatches(out), "document", "documents"),
		humanize.Comma(int64(out.Searched)))
	fmt.Fprintln(w)

	switch {
	case out.Total == 0:
		fmt.Fprintf(w, "%sNo results found.%s\n", p.yellow, p.reset)
	case out.Navigation != nil:
		for _, nav := range out.Navigation {
			outputNavigation(w, p, nav)
		}
	default:
		for _, view := range out.Documents {
			outputRichDocument(w, p, view)
		}
	}

	if out.Stats != nil {
		outputStats(w, p, out.Stats)
	}
}

func outputRichDocument(w io.Writer, p palette, view viewOutput) {
	fmt.Fprintf(w, "%s%s%s %s(%s)%s %s%s%s\n",
		p.bold, view.Title, p.reset,
		p.yellow, plural(view.Count, "match", "matches"), p.reset,
		p.gray, view.Path, p.reset)

	for _, match := range view.Matches {
		fmt.Fprintf(w, "  %sp.%-4d%s %s\n", p.green, match.Page, p.reset, highlight(p, match))
	}
	fmt.Fprintln(w)
}

func outputNavigation(w io.Writer, p palette, nav navigationOutput) {
	fmt.Fprintf(w, "%s%s%s %s%s from page %d:%s page %d, match %d\n",
		p.bold, nav.Title, p.reset,
		p.gray, nav.Direction, nav.From, p.reset,
		nav.Match.Page, nav.Row+1)
	if text := highlight(p, nav.Match); text != "" {
		fmt.Fprintf(w, "  %s\n", text)
	}
}

func outputStats(w io.Writer, p palette, stats *statsOutput) {
	fmt.Fprintf(w, "%sSnippet cache:%s %s / %s, %s hits, %s misses, %s evictions (%.1f%% hit rate)\n",
		p.gray, p.reset,
		humanize.Bytes(uint64(stats.SnippetCost)), humanize.Bytes(uint64(stats.SnippetLimit)),
		humanize.Comma(stats.Snippets.Hits), humanize.Comma(stats.Snippets.Misses),
		humanize.Comma(stats.Snippets.Evictions), stats.Snippets.HitRate*100)

	pages := stats.Pages
	fmt.Fprintf(w, "%sPage cache:%s %s / %s, %s hits, %s misses, %s evictions (%.1f%% hit rate)\n",
		p.gray, p.reset,
		humanize.Bytes(pages.CostAdded-min(pages.CostEvicted, pages.CostAdded)), humanize.Bytes(uint64(pages.MaxCost)),
		humanize.Comma(int64(pages.Hits)), humanize.Comma(int64(pages.Misses)),
		humanize.Comma(int64(pages.KeysEvicted)), pages.HitRatio*100)
}

// highlight renders the context of a match on one line with the matched text
// emphasized.
func highlight(p palette, match matchOutput) string {
	text := match.Context
	if text == "" {
		text = match.Text
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || match.Text == "" {
		return text
	}

	matched := strings.Join(strings.Fields(match.Text), " ")
	i := strings.Index(text, matched)
	if i < 0 || p.bold == "" {
		return text
	}
	return text[:i] + p.bold + p.yellow + matched + p.reset + text[i+len(matched):]
}

func searchFlagsSuffix(out *searchOutput) string {
	var flags []string
	if out.MatchCase {
		flags = append(flags, "match case")
	}
	if out.WholeWords {
		flags = append(flags, "whole words")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}

func countWithMatches(out *searchOutput) int {
	if out.Navigation != nil {
		return len(out.Navigation)
	}
	return len(out.Documents)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

// =============================================================================
// Utility Functions
// =============================================================================

// isTerminal returns true if the given writer is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
