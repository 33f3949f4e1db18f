package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

// EnsureDatabase connects to the maintenance database at adminDSN and creates
// database name if it does not exist. It reports whether it was created.
func EnsureDatabase(ctx context.Context, adminDSN, name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("%w: database name is required", domain.ErrInvalidConfig)
	}

	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return false, fmt.Errorf("%w: connecting to postgres: %v", domain.ErrStoreFailure, err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: checking database: %v", domain.ErrStoreFailure, err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE does not accept bind parameters.
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("%w: creating database %s: %v", domain.ErrStoreFailure, name, err)
	}
	return true, nil
}

// EnsureExtension creates the vector extension in the database at dsn.
func EnsureExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("%w: connecting to postgres: %v", domain.ErrStoreFailure, err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: creating vector extension: %v", domain.ErrStoreFailure, err)
	}
	return nil
}
