// Package cli implements the pdfkb command line interface with cobra.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfkb/internal/logger"
)

// version is set by Execute from the build.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "pdfkb",
	Short: "Local knowledge base over a folder of PDFs",
	Long: `pdfkb extracts text from PDF files (falling back to OCR for scanned pages),
splits it into overlapping chunks, embeds the chunks and stores them for
semantic search from the command line or over MCP.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
	PersistentPostRun: func(_ *cobra.Command, _ []string) { closeServices() },
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.pdfkb)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

// setupLogger builds the logger once per invocation. LOG_LEVEL applies
// unless --verbose is given.
func setupLogger(cmd *cobra.Command, _ []string) error {
	if log != nil {
		return nil
	}
	level := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if verbose {
		level = logger.LevelDebug
	}
	log = logger.New(cmd.ErrOrStderr(), level)
	return nil
}
