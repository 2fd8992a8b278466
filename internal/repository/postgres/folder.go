package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"explorer/internal/domain/models"
	"explorer/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const folderColumns = "id, name, parent_id, is_container, created_at, updated_at, deleted_at"

// PostgresFolderStore implements repositories.FolderStore
type PostgresFolderStore struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFolderStore creates a new folder store
func NewFolderStore(config *RepositoryConfig) repositories.FolderStore {
	return &PostgresFolderStore{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// FindByID retrieves a folder by ID, nil when absent
func (r *PostgresFolderStore) FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, storageError(r.logger, "find", err, "id", id)
	}

	return folder, nil
}

// Insert creates a new folder
func (r *PostgresFolderStore) Insert(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, parent_id, is_container, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.Name,
		folder.ParentID,
		folder.IsContainer,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return storageError(r.logger, "insert", err, "name", folder.Name)
	}

	return nil
}

// UpdateName renames a live folder
func (r *PostgresFolderStore) UpdateName(ctx context.Context, id int64, name string, updatedAt time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, name, updatedAt, id)
	if err != nil {
		return 0, storageError(r.logger, "update", err, "id", id)
	}

	return result.RowsAffected(), nil
}

// ListChildIDs returns the direct children of every parent, chunking the id list
func (r *PostgresFolderStore) ListChildIDs(ctx context.Context, parentIDs []int64, includeDeleted bool) ([]int64, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE parent_id = ANY($1)`, r.tables.Folders)
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	executor := GetExecutor(ctx, r.pool)
	var ids []int64
	for start := 0; start < len(parentIDs); start += repositories.ChildIDBatchSize {
		end := min(start+repositories.ChildIDBatchSize, len(parentIDs))

		rows, err := executor.Query(ctx, query, parentIDs[start:end])
		if err != nil {
			return nil, storageError(r.logger, "list child ids", err, "parents", end-start)
		}
		batch, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, storageError(r.logger, "list child ids", err, "parents", end-start)
		}
		ids = append(ids, batch...)
	}

	return ids, nil
}

// SetDeletedAt soft-deletes (at != nil) or restores (at == nil) every id
func (r *PostgresFolderStore) SetDeletedAt(ctx context.Context, ids []int64, at *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, updated_at = $2
		WHERE id = ANY($3)
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, at, time.Now(), ids)
	if err != nil {
		return 0, storageError(r.logger, "set deleted_at", err, "count", len(ids))
	}

	return result.RowsAffected(), nil
}

// DeleteByIDs permanently removes every id
func (r *PostgresFolderStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, ids)
	if err != nil {
		return 0, storageError(r.logger, "delete", err, "count", len(ids))
	}

	return result.RowsAffected(), nil
}

// Count counts folders and files
func (r *PostgresFolderStore) Count(ctx context.Context, includeDeleted bool) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.tables.Folders)
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, storageError(r.logger, "count", err)
	}

	return count, nil
}

// ListByParent lists the live children of a parent (nil = root level)
func (r *PostgresFolderStore) ListByParent(ctx context.Context, parentID *int64, containersOnly bool) ([]models.Folder, error) {
	where, args := parentClause(parentID)
	if containersOnly {
		where += " AND is_container = TRUE"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s AND deleted_at IS NULL
		ORDER BY is_container DESC, name ASC, id ASC
	`, folderColumns, r.tables.Folders, where)

	return r.queryFolders(ctx, "list children", query, args...)
}

// ListByParentAfter returns the next slice of children in id order
func (r *PostgresFolderStore) ListByParentAfter(ctx context.Context, parentID *int64, afterID int64, limit int) ([]models.Folder, error) {
	where, args := parentClause(parentID)
	args = append(args, afterID, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s AND deleted_at IS NULL AND id > $%d
		ORDER BY id ASC
		LIMIT $%d
	`, folderColumns, r.tables.Folders, where, len(args)-1, len(args))

	return r.queryFolders(ctx, "list children page", query, args...)
}

// CountChildren counts live children of every parent in a single grouped query
func (r *PostgresFolderStore) CountChildren(ctx context.Context, parentIDs []int64, containersOnly bool) (map[int64]int, error) {
	counts := make(map[int64]int)
	if len(parentIDs) == 0 {
		return counts, nil
	}

	filter := ""
	if containersOnly {
		filter = " AND is_container = TRUE"
	}
	query := fmt.Sprintf(`
		SELECT parent_id, COUNT(*)
		FROM %s
		WHERE parent_id = ANY($1) AND deleted_at IS NULL%s
		GROUP BY parent_id
	`, r.tables.Folders, filter)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, parentIDs)
	if err != nil {
		return nil, storageError(r.logger, "count children", err, "parents", len(parentIDs))
	}
	defer rows.Close()

	for rows.Next() {
		var parentID int64
		var count int
		if err := rows.Scan(&parentID, &count); err != nil {
			return nil, storageError(r.logger, "count children", err)
		}
		counts[parentID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(r.logger, "count children", err)
	}

	return counts, nil
}

// ListContainers returns every live container ordered by name
func (r *PostgresFolderStore) ListContainers(ctx context.Context) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE is_container = TRUE AND deleted_at IS NULL
		ORDER BY name ASC, id ASC
	`, folderColumns, r.tables.Folders)

	return r.queryFolders(ctx, "list containers", query)
}

// SearchByName matches names against an already escaped LIKE pattern
func (r *PostgresFolderStore) SearchByName(ctx context.Context, pattern string, afterID int64, limit int, orderByID bool) ([]models.Folder, error) {
	var query string
	var args []any

	if orderByID {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE deleted_at IS NULL AND name LIKE $1 ESCAPE '\' AND id > $2
			ORDER BY id ASC
			LIMIT $3
		`, folderColumns, r.tables.Folders)
		args = []any{pattern, afterID, limit}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE deleted_at IS NULL AND name LIKE $1 ESCAPE '\'
			ORDER BY is_container DESC, name ASC, id ASC
			LIMIT $2
		`, folderColumns, r.tables.Folders)
		args = []any{pattern, limit}
	}

	return r.queryFolders(ctx, "search", query, args...)
}

// ListPage returns one offset page in listing order, folders before files
func (r *PostgresFolderStore) ListPage(ctx context.Context, offset, limit int, includeDeleted bool) ([]models.Folder, error) {
	filter := ""
	if !includeDeleted {
		filter = "WHERE deleted_at IS NULL"
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		%s
		ORDER BY is_container DESC, name ASC, id ASC
		LIMIT $1 OFFSET $2
	`, folderColumns, r.tables.Folders, filter)

	return r.queryFolders(ctx, "list page", query, limit, offset)
}

// Ping checks the pool can reach the database
func (r *PostgresFolderStore) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return storageError(r.logger, "ping", err)
	}
	return nil
}

func (r *PostgresFolderStore) queryFolders(ctx context.Context, op, query string, args ...any) ([]models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError(r.logger, op, err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, storageError(r.logger, op, err)
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(r.logger, op, err)
	}

	return folders, nil
}

// parentClause builds the parent filter; NULL needs IS NULL rather than = $1
func parentClause(parentID *int64) (string, []any) {
	if parentID == nil {
		return "parent_id IS NULL", nil
	}
	return "parent_id = $1", []any{*parentID}
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.Name,
		&folder.ParentID,
		&folder.IsContainer,
		&folder.CreatedAt,
		&folder.UpdatedAt,
		&folder.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
