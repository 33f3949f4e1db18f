package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfkb/internal/extractors/pdf"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file and PDF folder",
	Long: `Writes the effective settings to the config file, creates the PDF folder
and checks that the external extraction tools are installed.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	if err := svc.Save(svc.Stored()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println("Settings saved.")

	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if err := os.MkdirAll(settings.PDFFolder, 0o755); err != nil {
		return fmt.Errorf("creating PDF folder: %w", err)
	}
	cmd.Printf("PDF folder: %s\n", settings.PDFFolder)

	ex := settings.Extraction
	if err := pdf.CheckAvailable(ex.PdfToTextCmd, ex.PdfToPpmCmd, ex.TesseractCmd); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println(pdf.InstallInstructions())
	} else {
		cmd.Println("Extraction tools found.")
	}

	if !settings.Embedding.IsConfigured() {
		cmd.Println("No embedding provider configured. Run 'pdfkb settings embedding'.")
	}
	return nil
}
