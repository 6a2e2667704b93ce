package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

// migrationTable records applied migration ids.
const migrationTable = "ledger_migrations"

// applyMigrations runs every pending Up section in fsys, each in its own
// transaction, and returns how many were applied.
func applyMigrations(ctx context.Context, sqlDB *sql.DB, fsys embed.FS) (int, error) {
	ms := migrate.MigrationSet{TableName: migrationTable}
	source := &migrate.EmbedFileSystemMigrationSource{FileSystem: fsys, Root: "."}
	applied, err := ms.ExecContext(ctx, sqlDB, "sqlite3", source, migrate.Up)
	if err != nil {
		return applied, fmt.Errorf("run migrations: %w", err)
	}
	return applied, nil
}
