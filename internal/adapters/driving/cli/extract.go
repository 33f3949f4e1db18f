package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	extractJSON bool
	extractText bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract text from one PDF without storing it",
	Long: `Runs the extraction tiers (native, layout, OCR) on a single PDF and
reports which tier produced the text. Nothing is embedded or stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output metadata as JSON")
	extractCmd.Flags().BoolVar(&extractText, "text", false, "print the full extracted text")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	extractor, err := requireExtractor()
	if err != nil {
		return err
	}

	doc, err := extractor.Extract(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if extractJSON {
		return printJSON(cmd, doc.Metadata)
	}

	cmd.Printf("File: %s\n", doc.Filename)
	cmd.Printf("  Method: %s\n", doc.Metadata.Method)
	cmd.Printf("  Pages: %d\n", doc.Metadata.Pages)
	cmd.Printf("  Characters: %d\n", doc.Metadata.TextLength)
	cmd.Printf("  MD5: %s\n", doc.Metadata.FileHash)
	if extractText {
		cmd.Println()
		cmd.Println(doc.Text)
	} else {
		cmd.Printf("  Preview: %s\n", snippet(doc.Text, snippetLength))
	}
	return nil
}
