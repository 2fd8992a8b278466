package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"explorer/internal/config"
	"explorer/internal/domain"
	"explorer/internal/domain/models"
	"explorer/internal/domain/repositories"
	"explorer/internal/domain/services"
	"explorer/internal/traversal"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type folderService struct {
	store      repositories.FolderStore
	txManager  repositories.TransactionManager
	pagination config.PaginationConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewFolderService creates the hierarchy service on top of a folder store
func NewFolderService(
	store repositories.FolderStore,
	txManager repositories.TransactionManager,
	pagination config.PaginationConfig,
	logger *slog.Logger,
) services.FolderService {
	return &folderService{
		store:      store,
		txManager:  txManager,
		pagination: pagination,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a folder or file. The parent check and the insert share one
// transaction so a parent deleted concurrently cannot gain a child.
func (s *folderService) Create(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}

	var created *models.Folder
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if req.ParentID != nil {
			parent, err := s.store.FindByID(txCtx, *req.ParentID, false)
			if err != nil {
				return err
			}
			if parent == nil {
				return domain.NewNotFound(*req.ParentID)
			}
			if !parent.IsContainer {
				return domain.ParentNotContainer(parent.ID)
			}
		}

		now := s.now()
		folder := &models.Folder{
			Name:        name,
			ParentID:    req.ParentID,
			IsContainer: req.IsContainer,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Insert(txCtx, folder); err != nil {
			return err
		}

		stored, err := s.store.FindByID(txCtx, folder.ID, false)
		if err != nil {
			return err
		}
		if stored == nil {
			s.logger.Error("inserted folder could not be read back", "id", folder.ID)
			return &domain.CreationFailedError{ID: folder.ID}
		}
		created = stored
		return nil
	})
	if err != nil {
		return nil, s.wrap("create folder", err)
	}

	s.logger.Info("folder created",
		"id", created.ID,
		"name", created.Name,
		"parent_id", created.ParentID,
		"is_container", created.IsContainer,
	)

	return created, nil
}

// Rename changes the name of a live node
func (s *folderService) Rename(ctx context.Context, id int64, name string) (*models.Folder, error) {
	if id <= 0 {
		return nil, domain.NewValidation("id", "Invalid folder ID")
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByID(ctx, id, false)
	if err != nil {
		return nil, s.wrap("rename folder", err)
	}
	if existing == nil {
		return nil, domain.NewNotFound(id)
	}

	affected, err := s.store.UpdateName(ctx, id, name, s.now())
	if err != nil {
		return nil, s.wrap("rename folder", err)
	}
	// Deleted between the lookup and the update
	if affected == 0 {
		return nil, domain.NewNotFound(id)
	}

	updated, err := s.store.FindByID(ctx, id, false)
	if err != nil {
		return nil, s.wrap("rename folder", err)
	}
	if updated == nil {
		return nil, domain.NewNotFound(id)
	}

	s.logger.Info("folder renamed",
		"id", id,
		"old_name", existing.Name,
		"new_name", updated.Name,
	)

	return updated, nil
}

// GetByID looks a node up, returning nil when it is absent or filtered out
func (s *folderService) GetByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	if id <= 0 {
		return nil, nil
	}
	folder, err := s.store.FindByID(ctx, id, includeDeleted)
	if err != nil {
		return nil, s.wrap("get folder", err)
	}
	return folder, nil
}

// ListChildren lists direct live children, containers first
func (s *folderService) ListChildren(ctx context.Context, parentID *int64) ([]models.Folder, error) {
	children, err := s.store.ListByParent(ctx, parentID, false)
	if err != nil {
		return nil, s.wrap("list children", err)
	}
	return children, nil
}

// ListChildrenPage lists direct live children in id order
func (s *folderService) ListChildrenPage(ctx context.Context, parentID *int64, req services.PageRequest) (*models.CursorPage, error) {
	limit := s.pageLimit(req.Limit)
	afterID := traversal.DecodeCursor(req.Cursor)

	rows, err := s.store.ListByParentAfter(ctx, parentID, afterID, limit+1)
	if err != nil {
		return nil, s.wrap("list children page", err)
	}

	return traversal.TrimPage(rows, limit), nil
}

// ListContainerChildren returns the container children of a parent, each
// flagged with whether it has container children of its own
func (s *folderService) ListContainerChildren(ctx context.Context, parentID *int64) ([]*models.FolderTreeNode, error) {
	containers, err := s.store.ListByParent(ctx, parentID, true)
	if err != nil {
		return nil, s.wrap("list subfolders", err)
	}
	return s.lazyLevel(ctx, containers)
}

// GetTree returns the root containers of the lazy tree
func (s *folderService) GetTree(ctx context.Context) ([]*models.FolderTreeNode, error) {
	roots, err := s.store.ListByParent(ctx, nil, true)
	if err != nil {
		return nil, s.wrap("get tree", err)
	}
	return s.lazyLevel(ctx, roots)
}

// GetFullTree loads every live container and nests it
func (s *folderService) GetFullTree(ctx context.Context) ([]*models.FolderTreeNode, error) {
	containers, err := s.store.ListContainers(ctx)
	if err != nil {
		return nil, s.wrap("get full tree", err)
	}
	return traversal.BuildTree(containers), nil
}

// Search finds live nodes whose name contains query, containers first
func (s *folderService) Search(ctx context.Context, query string, limit int) ([]models.Folder, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Folder{}, nil
	}
	limit = traversal.ClampLimit(limit, s.pagination.MaxSearchResults, s.pagination.MaxPageSize)

	results, err := s.store.SearchByName(ctx, likePattern(query), 0, limit, false)
	if err != nil {
		return nil, s.wrap("search folders", err)
	}
	return results, nil
}

// SearchPage is a cursor-paginated Search in id order
func (s *folderService) SearchPage(ctx context.Context, req services.SearchRequest) (*models.CursorPage, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return traversal.TrimPage(nil, 0), nil
	}
	limit := s.pageLimit(req.Limit)
	afterID := traversal.DecodeCursor(req.Cursor)

	rows, err := s.store.SearchByName(ctx, likePattern(query), afterID, limit+1, true)
	if err != nil {
		return nil, s.wrap("search folders page", err)
	}

	return traversal.TrimPage(rows, limit), nil
}

// SoftDelete marks a node and all of its live descendants deleted in one transaction
func (s *folderService) SoftDelete(ctx context.Context, id int64) error {
	var affected int64
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		target, err := s.store.FindByID(txCtx, id, true)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NewNotFound(id)
		}

		descendants, err := traversal.CollectDescendantIDs(txCtx, s.store, id, false)
		if err != nil {
			return err
		}

		now := s.now()
		affected, err = s.store.SetDeletedAt(txCtx, append([]int64{id}, descendants...), &now)
		return err
	})
	if err != nil {
		return s.wrap("soft delete folder", err)
	}

	s.logger.Info("folder soft deleted", "id", id, "rows", affected)
	return nil
}

// HardDelete permanently removes a node and every descendant, deleted or not
func (s *folderService) HardDelete(ctx context.Context, id int64) error {
	var affected int64
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		target, err := s.store.FindByID(txCtx, id, true)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NewNotFound(id)
		}

		descendants, err := traversal.CollectDescendantIDs(txCtx, s.store, id, true)
		if err != nil {
			return err
		}

		affected, err = s.store.DeleteByIDs(txCtx, append([]int64{id}, descendants...))
		return err
	})
	if err != nil {
		return s.wrap("hard delete folder", err)
	}

	s.logger.Info("folder permanently deleted", "id", id, "rows", affected)
	return nil
}

// Restore clears deletedAt on a deleted node and all of its descendants
func (s *folderService) Restore(ctx context.Context, id int64) (*models.Folder, error) {
	var restored *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		target, err := s.store.FindByID(txCtx, id, true)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NewNotFound(id)
		}
		if !target.IsDeleted() {
			return domain.FolderNotDeleted(id)
		}

		descendants, err := traversal.CollectDescendantIDs(txCtx, s.store, id, true)
		if err != nil {
			return err
		}

		if _, err := s.store.SetDeletedAt(txCtx, append([]int64{id}, descendants...), nil); err != nil {
			return err
		}

		restored, err = s.store.FindByID(txCtx, id, false)
		if err != nil {
			return err
		}
		if restored == nil {
			return domain.NewNotFound(id)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("restore folder", err)
	}

	s.logger.Info("folder restored", "id", id, "name", restored.Name)
	return restored, nil
}

// Count counts nodes
func (s *folderService) Count(ctx context.Context, includeDeleted bool) (int, error) {
	count, err := s.store.Count(ctx, includeDeleted)
	if err != nil {
		return 0, s.wrap("count folders", err)
	}
	return count, nil
}

// List returns one offset page, folders first and then by name
func (s *folderService) List(ctx context.Context, req services.ListRequest) (*models.OffsetPage, error) {
	page := max(req.Page, 1)
	limit := s.pageLimit(req.Limit)

	rows, err := s.store.ListPage(ctx, (page-1)*limit, limit, req.IncludeDeleted)
	if err != nil {
		return nil, s.wrap("list folders", err)
	}
	total, err := s.store.Count(ctx, req.IncludeDeleted)
	if err != nil {
		return nil, s.wrap("list folders", err)
	}

	return &models.OffsetPage{
		Data: rows,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// lazyLevel wraps one level of containers and sets hasChildren from a single
// grouped count over the whole level
func (s *folderService) lazyLevel(ctx context.Context, containers []models.Folder) ([]*models.FolderTreeNode, error) {
	nodes := make([]*models.FolderTreeNode, 0, len(containers))
	if len(containers) == 0 {
		return nodes, nil
	}

	ids := make([]int64, len(containers))
	for i, c := range containers {
		ids[i] = c.ID
	}
	counts, err := s.store.CountChildren(ctx, ids, true)
	if err != nil {
		return nil, s.wrap("count children", err)
	}

	for _, c := range containers {
		node := models.NewFolderTreeNode(c)
		hasChildren := counts[c.ID] > 0
		node.HasChildren = &hasChildren
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *folderService) pageLimit(limit int) int {
	return traversal.ClampLimit(limit, s.pagination.DefaultPageSize, s.pagination.MaxPageSize)
}

// wrap adds operation context to storage failures. Domain errors pass through
// untouched so callers can match them directly.
func (s *folderService) wrap(op string, err error) error {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) && !errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validateName trims a name and checks it fits the column
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("Folder name is required"),
		validation.RuneLength(1, config.MaxFolderNameLength).Error(
			fmt.Sprintf("Folder name must be at most %d characters", config.MaxFolderNameLength)),
	)
	if err != nil {
		return "", domain.NewValidation("name", err.Error())
	}
	return name, nil
}

// likePattern builds a substring LIKE pattern in which the query's own
// wildcard and escape characters match literally
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}
