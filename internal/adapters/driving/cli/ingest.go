package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfkb/internal/adapters/driving/watch"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

var (
	ingestForce bool
	ingestWatch bool
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest the PDF files in a folder",
	Long: `Extracts, chunks and embeds every .pdf file in the folder (not recursive).
Documents whose content hash is already stored are skipped unless --force
is given. With --watch the folder is then monitored and changed files are
re-ingested until interrupted.

The folder defaults to the pdf_folder setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-process documents that are unchanged")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the folder after ingesting")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	folder := ""
	if len(args) == 1 {
		folder = args[0]
	} else {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		folder = settings.PDFFolder
	}

	svc, err := requireIngestion(ctx)
	if err != nil {
		return hint(err)
	}

	summary, err := svc.IngestFolder(ctx, folder, domain.IngestOptions{Force: ingestForce})
	if summary != nil {
		if ingestJSON {
			if jerr := printJSON(cmd, summary); jerr != nil {
				return jerr
			}
		} else {
			printSummary(cmd, summary)
		}
	}
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if !ingestWatch {
		return nil
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", folder)
	return watch.New(folder, svc, currentLog()).Run(ctx)
}

func printSummary(cmd *cobra.Command, s *domain.IngestSummary) {
	cmd.Println("Ingestion summary")
	cmd.Printf("  Documents: %d attempted, %d succeeded, %d unchanged\n",
		s.DocumentsAttempted, s.DocumentsSucceeded, s.DocumentsSkipped)
	cmd.Printf("  Chunks created: %d\n", s.ChunksCreated)
	cmd.Printf("  Duration: %s\n", s.Duration().Round(time.Millisecond))
	if len(s.Failures) > 0 {
		cmd.Printf("  Failed (%d):\n", len(s.Failures))
		for _, f := range s.Failures {
			cmd.Printf("    %s: %s\n", f.Filename, f.Error)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
