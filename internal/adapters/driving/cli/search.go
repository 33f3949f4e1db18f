package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

var (
	searchTopK      int
	searchThreshold float64
	searchJSON      bool
)

// snippetLength caps the content shown per result in table output.
const snippetLength = 300

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Embeds the query and returns the most similar stored chunks, best first.
Only chunks whose cosine similarity is strictly above the threshold are
returned. Defaults come from the retrieval settings.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of results (default from settings)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "minimum similarity, exclusive (default from settings)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	svc, err := requireRetrieval(cmd.Context())
	if err != nil {
		return hint(err)
	}

	opts := domain.SearchOptions{TopK: searchTopK}
	if cmd.Flags().Changed("threshold") {
		opts = opts.WithThreshold(searchThreshold)
	}

	results, err := svc.RetrieveWith(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, results)
	}

	outputSearchTable(cmd, results)
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := results[i]
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, r.Filename, r.ChunkID, r.Similarity)
		if r.Metadata.Method != "" {
			cmd.Printf("      Method: %s, pages: %d\n", r.Metadata.Method, r.Metadata.Pages)
		}
		cmd.Printf("      %s\n", snippet(r.Content, snippetLength))
		cmd.Println()
	}
}

// snippet flattens whitespace and truncates to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
