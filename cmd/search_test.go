package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/docsearch/core/document"
	"github.com/adalundhe/docsearch/core/search/results"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// corpus writes three documents: two with matches for "needle", one without.
func corpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha needle\fbeta\fneedle gamma")
	writeFile(t, dir, "b.txt", "nothing to see")
	writeFile(t, dir, "c.md", "Needle")
	writeFile(t, dir, "skip.bin", "needle")
	return dir
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// execute runs the root command with args in an isolated config environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	resetFlags(rootCmd.PersistentFlags())
	resetFlags(searchCmd.Flags())
	resetFlags(watchCmd.Flags())
	configManager = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func executeJSON(t *testing.T, args ...string) searchOutput {
	t.Helper()
	raw, err := execute(t, append([]string{"search", "--json"}, args...)...)
	require.NoError(t, err)

	var out searchOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out), raw)
	return out
}

// =============================================================================
// Command Definition Tests
// =============================================================================

func TestSearchCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, searchCmd)
		assert.Equal(t, "search <query> <path>...", searchCmd.Use)
		assert.Equal(t, "Search documents page by page", searchCmd.Short)
	})

	t.Run("command has flags", func(t *testing.T) {
		flags := searchCmd.Flags()

		matchCase := flags.Lookup("match-case")
		require.NotNil(t, matchCase)
		assert.Equal(t, "c", matchCase.Shorthand)
		assert.Equal(t, "false", matchCase.DefValue)

		wholeWords := flags.Lookup("whole-words")
		require.NotNil(t, wholeWords)
		assert.Equal(t, "w", wholeWords.Shorthand)

		page := flags.Lookup("page")
		require.NotNil(t, page)
		assert.Equal(t, "p", page.Shorthand)
		assert.Equal(t, "0", page.DefValue)

		next := flags.Lookup("next")
		require.NotNil(t, next)
		assert.Equal(t, "n", next.Shorthand)

		require.NotNil(t, flags.Lookup("previous"))
		require.NotNil(t, flags.Lookup("stats"))

		jsonFlag := flags.Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)

		snippets := flags.Lookup("snippets")
		require.NotNil(t, snippets)
		assert.Equal(t, "true", snippets.DefValue)
	})

	t.Run("requires a query and a path", func(t *testing.T) {
		assert.Error(t, cobra.MinimumNArgs(2)(searchCmd, []string{"query"}))
		assert.NoError(t, searchCmd.Args(searchCmd, []string{"query", "."}))
	})
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "log-level", "log-format"} {
		flag := flags.Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}
}

// =============================================================================
// Search Execution Tests
// =============================================================================

func TestSearch_TextOutput(t *testing.T) {
	dir := corpus(t)

	out, err := execute(t, "search", "needle", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Found: 3 matches in 2 documents of 3")
	assert.Contains(t, out, "a.txt (2 matches)")
	assert.Contains(t, out, "c.md (1 match)")
	assert.Contains(t, out, "p.1    alpha needle")
	assert.Contains(t, out, "p.3    needle gamma")
	assert.NotContains(t, out, "b.txt")
	assert.NotContains(t, out, "\033[", "no colour when not writing to a terminal")
}

func TestSearch_JSONTree(t *testing.T) {
	dir := corpus(t)

	out := executeJSON(t, "needle", dir)

	assert.Equal(t, "needle", out.Query)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 3, out.Searched)
	require.Len(t, out.Documents, 2)

	a := out.Documents[0]
	assert.Equal(t, "a.txt", a.Title)
	assert.Equal(t, filepath.Join(dir, "a.txt"), a.Path)
	assert.Equal(t, 2, a.Count)
	require.Len(t, a.Matches, 2)
	assert.Equal(t, 1, a.Matches[0].Page)
	assert.Equal(t, "needle", a.Matches[0].Text)
	assert.Equal(t, "alpha needle", a.Matches[0].Context)
	assert.Equal(t, 3, a.Matches[1].Page)

	c := out.Documents[1]
	assert.Equal(t, "c.md", c.Title)
	assert.Equal(t, "Needle", c.Matches[0].Text)
	assert.Less(t, a.View, c.View, "views are listed in opening order")
}

func TestSearch_Options(t *testing.T) {
	dir := corpus(t)

	out := executeJSON(t, "--match-case", "Needle", dir)
	assert.Equal(t, 1, out.Total)
	assert.True(t, out.MatchCase)

	out = executeJSON(t, "--whole-words", "need", dir)
	assert.Zero(t, out.Total)
	assert.Empty(t, out.Documents)
}

func TestSearch_WithoutSnippets(t *testing.T) {
	dir := corpus(t)

	out := executeJSON(t, "--snippets=false", "needle", dir)
	require.Len(t, out.Documents, 2)
	for _, match := range out.Documents[0].Matches {
		assert.Empty(t, match.Text)
		assert.Empty(t, match.Context)
	}
}

func TestSearch_Navigation(t *testing.T) {
	dir := corpus(t)

	tests := []struct {
		name  string
		args  []string
		pages []int
		dir   string
	}{
		{"next from page", []string{"--page", "2"}, []int{3, 1}, "next"},
		{"previous from page", []string{"--page", "2", "--previous"}, []int{1, 1}, "previous"},
		{"next wraps around", []string{"--page", "4", "--next"}, []int{1, 1}, "next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := executeJSON(t, append(tt.args, "needle", dir)...)
			assert.Empty(t, out.Documents)
			require.Len(t, out.Navigation, 2)

			var pages []int
			for _, nav := range out.Navigation {
				pages = append(pages, nav.Match.Page)
				assert.Equal(t, tt.dir, nav.Direction)
				assert.NotEmpty(t, nav.Match.Text)
			}
			assert.Equal(t, tt.pages, pages)
		})
	}
}

func TestSearch_Stats(t *testing.T) {
	dir := corpus(t)

	out := executeJSON(t, "--stats", "needle", dir)
	require.NotNil(t, out.Stats)
	assert.Equal(t, int64(1<<16), out.Stats.SnippetLimit)
	assert.Equal(t, int64(16<<20), out.Stats.Pages.MaxCost)

	text, err := execute(t, "search", "--stats", "needle", dir)
	require.NoError(t, err)
	assert.Contains(t, text, "Snippet cache:")
	assert.Contains(t, text, "Page cache:")
}

func TestSearch_ConfigFile(t *testing.T) {
	dir := corpus(t)
	cfg := writeFile(t, t.TempDir(), "config.yaml", "document:\n  include: [\"*.md\"]\n")

	out := executeJSON(t, "--config", cfg, "needle", dir)
	assert.Equal(t, 1, out.Searched)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "c.md", out.Documents[0].Title)
}

func TestSearch_Errors(t *testing.T) {
	dir := corpus(t)

	_, err := execute(t, "search", "needle", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, document.ErrPathNotExist)

	_, err = execute(t, "search", "--next", "--previous", "needle", dir)
	assert.Error(t, err)

	_, err = execute(t, "search", "--config", filepath.Join(dir, "none.yaml"), "needle", dir)
	assert.Error(t, err)

	_, err = execute(t, "search", "--log-level", "loud", "needle", dir)
	assert.Error(t, err)
}

// =============================================================================
// Formatting Tests
// =============================================================================

func TestHighlight(t *testing.T) {
	match := matchOutput{Text: "fox", Context: "the quick\nbrown fox  jumps"}

	assert.Equal(t, "the quick brown fox jumps", highlight(palette{}, match))

	p := palette{bold: colorBold, yellow: colorYellow, reset: colorReset}
	assert.Equal(t, "the quick brown "+colorBold+colorYellow+"fox"+colorReset+" jumps", highlight(p, match))

	assert.Equal(t, colorBold+colorYellow+"fox"+colorReset, highlight(p, matchOutput{Text: "fox"}))
	assert.Empty(t, highlight(p, matchOutput{}))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 match", plural(1, "match", "matches"))
	assert.Equal(t, "0 matches", plural(0, "match", "matches"))
	assert.Equal(t, "12,345 matches", plural(12345, "match", "matches"))
}

func TestRichResults_NoMatches(t *testing.T) {
	var buf bytes.Buffer
	outputRichResults(&buf, palette{}, &searchOutput{Query: "x", Searched: 2})
	assert.Contains(t, buf.String(), "No results found.")
	assert.Contains(t, buf.String(), "Found: 0 matches in 0 documents of 2")
}

func TestNavigationOutput_Row(t *testing.T) {
	var buf bytes.Buffer
	outputNavigation(&buf, palette{}, navigationOutput{
		Title:     "a.txt",
		Direction: results.Previous.String(),
		From:      4,
		Row:       1,
		Match:     matchOutput{Page: 3, Text: "needle", Context: "needle gamma"},
	})
	assert.Equal(t, "a.txt previous from page 4: page 3, match 2\n  needle gamma\n", buf.String())
}
