package postgres

import (
	"errors"
	"log/slog"

	"explorer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 = foreign_key_violation
		return pgErr.Code == "23503"
	}
	return false
}

// IsPgUndefinedTableError checks if error is a missing relation (schema not created)
func IsPgUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 42P01 = undefined_table
		return pgErr.Code == "42P01"
	}
	return false
}

// storageError logs a driver failure and wraps it with the failing operation
func storageError(logger *slog.Logger, op string, err error, attrs ...any) error {
	args := append([]any{"op", op, "entity", "folder", "error", err}, attrs...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		args = append(args, "pg_code", pgErr.Code)
	}
	switch {
	case IsPgUndefinedTableError(err):
		logger.Error("folders table missing, run the seed command with -schema-only", args...)
	case IsPgForeignKeyError(err):
		logger.Error("parent reference violated, a child was written concurrently", args...)
	default:
		logger.Error("database operation failed", args...)
	}
	return domain.NewStorageError(op, "folder", err)
}
