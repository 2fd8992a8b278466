package repositories

import (
	"context"
	"time"

	"explorer/internal/domain/models"
)

// ChildIDBatchSize caps the number of parent ids sent in a single IN list
const ChildIDBatchSize = 1000

// ChildLister returns the ids of the direct children of a set of parents.
// It is the only primitive the descendant walk needs.
type ChildLister interface {
	ListChildIDs(ctx context.Context, parentIDs []int64, includeDeleted bool) ([]int64, error)
}

// FolderStore is durable storage for hierarchy nodes.
// Every method joins the transaction carried by ctx when there is one.
type FolderStore interface {
	ChildLister

	// FindByID returns nil, nil when no row matches
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error)

	// Insert stores a new node and fills in ID, CreatedAt and UpdatedAt
	Insert(ctx context.Context, folder *models.Folder) error

	// UpdateName renames a live node and returns the number of rows changed
	UpdateName(ctx context.Context, id int64, name string, updatedAt time.Time) (int64, error)

	// SetDeletedAt sets (or clears, when at is nil) deleted_at on every id
	SetDeletedAt(ctx context.Context, ids []int64, at *time.Time) (int64, error)

	// DeleteByIDs permanently removes every id
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)

	Count(ctx context.Context, includeDeleted bool) (int, error)

	// ListByParent returns live children ordered containers first, then by name and id
	ListByParent(ctx context.Context, parentID *int64, containersOnly bool) ([]models.Folder, error)

	// ListByParentAfter returns at most limit live children with id > afterID, ordered by id
	ListByParentAfter(ctx context.Context, parentID *int64, afterID int64, limit int) ([]models.Folder, error)

	// CountChildren counts live children per parent in one query. Parents
	// without children are absent from the map.
	CountChildren(ctx context.Context, parentIDs []int64, containersOnly bool) (map[int64]int, error)

	// ListContainers returns every live container
	ListContainers(ctx context.Context) ([]models.Folder, error)

	// SearchByName matches live names against an escaped LIKE pattern.
	// With orderByID the rows are id > afterID ordered by id, otherwise
	// containers first then by name.
	SearchByName(ctx context.Context, pattern string, afterID int64, limit int, orderByID bool) ([]models.Folder, error)

	// ListPage returns one offset page ordered by id
	ListPage(ctx context.Context, offset, limit int, includeDeleted bool) ([]models.Folder, error)

	Ping(ctx context.Context) error
}
