package migrations

import (
	"context"
	"fmt"

	"synth-cohort/internal/storage/postgres"
)

// RunPostgresMigrations creates the stored_documents schema. All scripts run
// in one transaction, so a failing script leaves the database untouched.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	list, err := scripts(DocumentSchema, "postgres")
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document schema: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range list {
		if _, err := tx.Exec(ctx, s.body); err != nil {
			return fmt.Errorf("document schema %s: %w", s.name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document schema: %w", err)
	}
	return nil
}
