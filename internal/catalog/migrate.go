package catalog

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/swen/dms/internal/catalog/migrations"
)

// Migrate applies the embedded goose migrations. Safe to run on every
// startup; goose skips versions that are already applied.
func (r *Repository) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db.DB, "."); err != nil {
		return fmt.Errorf("applying catalog migrations: %w", err)
	}
	return nil
}
