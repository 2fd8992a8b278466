// Package traversal holds the pure hierarchy algorithms: the level-by-level
// descendant walk, flat-to-tree assembly and the opaque cursor codec.
package traversal

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"explorer/internal/domain/models"
	"explorer/internal/domain/repositories"
)

// CollectDescendantIDs walks the hierarchy breadth-first from rootID and
// returns every transitive descendant (rootID excluded), one store round-trip
// per level. The walk ends when a level comes back empty.
func CollectDescendantIDs(ctx context.Context, lister repositories.ChildLister, rootID int64, includeDeleted bool) ([]int64, error) {
	var descendants []int64
	seen := map[int64]struct{}{rootID: {}}
	frontier := []int64{rootID}

	for len(frontier) > 0 {
		children, err := lister.ListChildIDs(ctx, frontier, includeDeleted)
		if err != nil {
			return nil, fmt.Errorf("collect descendants of %d: %w", rootID, err)
		}

		var next []int64
		for _, id := range children {
			// A corrupt parent link cycle would otherwise loop forever
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			next = append(next, id)
		}
		descendants = append(descendants, next...)
		frontier = next
	}

	return descendants, nil
}

// BuildTree assembles a flat list into a forest in two passes. Records whose
// parent is not in the list are dropped together with their subtrees, since
// their parent is deleted or filtered out. Input order is kept at every level.
func BuildTree(folders []models.Folder) []*models.FolderTreeNode {
	nodes := make(map[int64]*models.FolderTreeNode, len(folders))
	for _, f := range folders {
		nodes[f.ID] = models.NewFolderTreeNode(f)
	}

	roots := []*models.FolderTreeNode{}
	for _, f := range folders {
		node := nodes[f.ID]
		if f.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*f.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return roots
}

// EncodeCursor turns a row id into an opaque page token
func EncodeCursor(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeCursor returns the row id carried by a page token. Anything that is
// not a valid token decodes to 0, which means "start from the beginning".
func DecodeCursor(cursor string) int64 {
	if cursor == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// TrimPage takes up to limit+1 rows fetched in cursor order and returns the
// page to send together with the cursor for the following page
func TrimPage(rows []models.Folder, limit int) *models.CursorPage {
	page := &models.CursorPage{Data: rows}
	if page.Data == nil {
		page.Data = []models.Folder{}
	}

	if len(rows) > limit {
		page.Data = rows[:limit]
		page.Cursor.HasMore = true
		if limit > 0 {
			next := EncodeCursor(page.Data[len(page.Data)-1].ID)
			page.Cursor.Next = &next
		}
	}

	return page
}

// ClampLimit applies the default page size to non-positive limits and caps at maxLimit
func ClampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
