package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the folders table and its indexes if they don't exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	createFolders := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			parent_id BIGINT REFERENCES %[1]s(id),
			is_container BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)
	`, tables.Folders)
	if _, err := pool.Exec(ctx, createFolders); err != nil {
		return fmt.Errorf("create %s: %w", tables.Folders, err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_parent_deleted_name ON %[1]s(parent_id, deleted_at, name)`,
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_container_deleted_name ON %[1]s(is_container, deleted_at, name)`,
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_deleted_name ON %[1]s(deleted_at, name)`,
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_parent ON %[1]s(parent_id)`,
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, fmt.Sprintf(idx, tables.Folders)); err != nil {
			return fmt.Errorf("create index on %s: %w", tables.Folders, err)
		}
	}

	return nil
}

// DropSchema drops the folders table
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, tables.Folders)); err != nil {
		return fmt.Errorf("drop %s: %w", tables.Folders, err)
	}
	return nil
}

// ClearData removes every row and resets the id sequence
func ClearData(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s RESTART IDENTITY`, tables.Folders)); err != nil {
		return fmt.Errorf("truncate %s: %w", tables.Folders, err)
	}
	return nil
}
