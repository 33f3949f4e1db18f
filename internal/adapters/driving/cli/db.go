package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfkb/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database commands",
}

var dbSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the postgres database",
	Long: `Creates the configured postgres database if it does not exist, enables
the vector extension and creates the chunk table and its indexes.

Only needed for store.backend = postgres; the sqlite store provisions
itself.`,
	Args: cobra.NoArgs,
	RunE: runDBSetup,
}

func init() {
	dbCmd.AddCommand(dbSetupCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBSetup(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.Store.Backend != domain.StoreBackendPostgres {
		cmd.Printf("Store backend is %s; nothing to set up.\n", settings.Store.Backend)
		return nil
	}

	ctx := cmd.Context()
	pg := settings.Store.Postgres

	created, err := postgres.EnsureDatabase(ctx, pg.AdminDSN(), pg.Database)
	if err != nil {
		return err
	}
	if created {
		cmd.Printf("Created database %s\n", pg.Database)
	} else {
		cmd.Printf("Database %s exists\n", pg.Database)
	}

	if err := postgres.EnsureExtension(ctx, pg.DSN()); err != nil {
		return err
	}
	cmd.Println("Vector extension enabled")

	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:        pg.DSN(),
		Table:      pg.Table,
		Dimensions: settings.Embedding.ResolvedDimensions(),
	}, currentLog())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	cmd.Printf("Table %s ready\n", pg.Table)
	return nil
}
