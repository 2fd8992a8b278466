package models

import (
	"time"
)

// Folder is a node of the hierarchy. Containers ("folders") may hold children,
// leaves ("files") never do. Both live in the same table.
type Folder struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	ParentID    *int64     `json:"parentId" db:"parent_id"` // NULL = root level
	IsContainer bool       `json:"isContainer" db:"is_container"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt   *time.Time `json:"deletedAt" db:"deleted_at"` // NULL = live
}

// IsDeleted reports whether the node is soft-deleted
func (f *Folder) IsDeleted() bool {
	return f.DeletedAt != nil
}

// FolderTreeNode is a folder with nested children for tree responses.
// HasChildren is only set on lazily loaded levels.
type FolderTreeNode struct {
	Folder
	Children    []*FolderTreeNode `json:"children"`
	HasChildren *bool             `json:"hasChildren,omitempty"`
}

// NewFolderTreeNode wraps a folder with an empty child list
func NewFolderTreeNode(f Folder) *FolderTreeNode {
	return &FolderTreeNode{
		Folder:   f,
		Children: []*FolderTreeNode{},
	}
}

// CursorInfo describes where the next page starts
type CursorInfo struct {
	Next    *string `json:"next"`
	HasMore bool    `json:"hasMore"`
}

// CursorPage is one page of a cursor-paginated listing
type CursorPage struct {
	Data   []Folder   `json:"data"`
	Cursor CursorInfo `json:"cursor"`
}

// Pagination describes an offset-paginated listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// OffsetPage is one page of an offset-paginated listing
type OffsetPage struct {
	Data       []Folder   `json:"data"`
	Pagination Pagination `json:"pagination"`
}
