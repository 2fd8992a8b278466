package services

import (
	"context"

	"explorer/internal/domain/models"
)

// FolderReader is the read side of the hierarchy
type FolderReader interface {
	// GetByID returns nil, nil when no node matches
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error)

	// ListChildren lists the live children of a parent (nil = root level),
	// containers first, then by name
	ListChildren(ctx context.Context, parentID *int64) ([]models.Folder, error)

	// ListChildrenPage lists live children in id order, one cursor page at a time
	ListChildrenPage(ctx context.Context, parentID *int64, req PageRequest) (*models.CursorPage, error)

	// ListContainerChildren expands one level of the lazy tree
	ListContainerChildren(ctx context.Context, parentID *int64) ([]*models.FolderTreeNode, error)

	// GetTree returns the root containers, each flagged with hasChildren
	GetTree(ctx context.Context) ([]*models.FolderTreeNode, error)

	// GetFullTree returns every live container nested under its parent.
	//
	// Deprecated: loads the whole hierarchy; use GetTree and ListContainerChildren.
	GetFullTree(ctx context.Context) ([]*models.FolderTreeNode, error)

	// Search returns up to limit live nodes whose name contains query
	Search(ctx context.Context, query string, limit int) ([]models.Folder, error)

	// SearchPage is Search with cursor pagination in id order
	SearchPage(ctx context.Context, req SearchRequest) (*models.CursorPage, error)

	Count(ctx context.Context, includeDeleted bool) (int, error)

	// List returns one offset-paginated page of all nodes
	List(ctx context.Context, req ListRequest) (*models.OffsetPage, error)
}

// FolderWriter creates and renames nodes
type FolderWriter interface {
	Create(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)
	Rename(ctx context.Context, id int64, name string) (*models.Folder, error)
}

// FolderDeleter removes and restores whole subtrees
type FolderDeleter interface {
	SoftDelete(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (*models.Folder, error)
}

// FolderService is the full hierarchy contract. Callers that only need part
// of it should depend on FolderReader, FolderWriter or FolderDeleter.
type FolderService interface {
	FolderReader
	FolderWriter
	FolderDeleter
}

// CreateFolderRequest represents a node creation request
type CreateFolderRequest struct {
	Name        string `json:"name"`
	ParentID    *int64 `json:"parentId,omitempty"` // null for root level
	IsContainer bool   `json:"isContainer"`
}

// PageRequest selects one cursor page
type PageRequest struct {
	Limit  int
	Cursor string
}

// SearchRequest is a cursor-paginated name search
type SearchRequest struct {
	Query  string
	Limit  int
	Cursor string
}

// ListRequest selects one offset page
type ListRequest struct {
	Page           int
	Limit          int
	IncludeDeleted bool
}
