package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"explorer/internal/config"
	"explorer/internal/domain"
	"explorer/internal/domain/models"
	"explorer/internal/domain/repositories"
	"explorer/internal/domain/services"
	"explorer/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPagination = config.PaginationConfig{
	DefaultPageSize:  config.DefaultPageSize,
	MaxPageSize:      config.MaxPageSize,
	MaxSearchResults: config.MaxSearchResults,
}

func newTestService(t *testing.T) (services.FolderService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewFolderService(store, store, testPagination, slog.New(slog.DiscardHandler)), store
}

func mustCreate(t *testing.T, svc services.FolderWriter, name string, parentID *int64, isContainer bool) *models.Folder {
	t.Helper()
	f, err := svc.Create(context.Background(), &services.CreateFolderRequest{
		Name:        name,
		ParentID:    parentID,
		IsContainer: isContainer,
	})
	require.NoError(t, err)
	return f
}

// spyStore counts calls that reach storage
type spyStore struct {
	repositories.FolderStore
	mu       sync.Mutex
	searches int
	counts   int
}

func (s *spyStore) SearchByName(ctx context.Context, pattern string, afterID int64, limit int, orderByID bool) ([]models.Folder, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
	return s.FolderStore.SearchByName(ctx, pattern, afterID, limit, orderByID)
}

func (s *spyStore) CountChildren(ctx context.Context, parentIDs []int64, containersOnly bool) (map[int64]int, error) {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	return s.FolderStore.CountChildren(ctx, parentIDs, containersOnly)
}

// failingStore fails every lookup with a storage error
type failingStore struct {
	repositories.FolderStore
}

func (failingStore) FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	return nil, domain.NewStorageError("find", "folder", errors.New("connection refused"))
}

// vanishingStore accepts inserts but never finds them again
type vanishingStore struct {
	*memory.Store
}

func (vanishingStore) FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	return nil, nil
}

func TestFolderService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	root := mustCreate(t, svc, "  Documents  ", nil, true)
	assert.Equal(t, "Documents", root.Name, "name is trimmed")
	assert.Nil(t, root.ParentID)
	assert.True(t, root.IsContainer)
	assert.False(t, root.CreatedAt.IsZero())
	assert.Nil(t, root.DeletedAt)

	file := mustCreate(t, svc, "report.pdf", &root.ID, false)
	require.NotNil(t, file.ParentID)
	assert.Equal(t, root.ID, *file.ParentID)

	got, err := svc.GetByID(ctx, file.ID, false)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	again, err := svc.GetByID(ctx, file.ID, false)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestFolderService_GetByIDMissing(t *testing.T) {
	svc, _ := newTestService(t)

	for _, id := range []int64{0, -1, 42} {
		got, err := svc.GetByID(context.Background(), id, true)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestFolderService_CreateValidation(t *testing.T) {
	svc, store := newTestService(t)
	leaf := mustCreate(t, svc, "notes.txt", nil, false)

	tests := []struct {
		name     string
		req      services.CreateFolderRequest
		wantErr  error
		wantCode string
	}{
		{
			name:     "empty name",
			req:      services.CreateFolderRequest{Name: "", IsContainer: true},
			wantErr:  domain.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "whitespace name",
			req:      services.CreateFolderRequest{Name: " \t ", IsContainer: true},
			wantErr:  domain.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "name too long",
			req:      services.CreateFolderRequest{Name: strings.Repeat("a", config.MaxFolderNameLength+1)},
			wantErr:  domain.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "missing parent",
			req:      services.CreateFolderRequest{Name: "orphan", ParentID: ptr(int64(999))},
			wantErr:  domain.ErrNotFound,
			wantCode: "NOT_FOUND",
		},
		{
			name:     "parent is a file",
			req:      services.CreateFolderRequest{Name: "child", ParentID: &leaf.ID},
			wantErr:  domain.ErrBusinessRule,
			wantCode: domain.CodeParentNotContainer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var httpErr domain.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.wantCode, httpErr.ErrorCode())
		})
	}

	count, err := store.Count(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed creates leave no rows behind")
}

func TestFolderService_CreateMaxLengthName(t *testing.T) {
	svc, _ := newTestService(t)
	name := strings.Repeat("é", config.MaxFolderNameLength)

	f := mustCreate(t, svc, name, nil, true)
	assert.Equal(t, name, f.Name)
}

func TestFolderService_CreateUnderDeletedParent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	parent := mustCreate(t, svc, "Trash me", nil, true)
	require.NoError(t, svc.SoftDelete(ctx, parent.ID))

	_, err := svc.Create(ctx, &services.CreateFolderRequest{Name: "late", ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderService_CreateReadBackFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewFolderService(vanishingStore{store}, store, testPagination, slog.New(slog.DiscardHandler))

	_, err := svc.Create(ctx, &services.CreateFolderRequest{Name: "ghost", IsContainer: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCreationFailed)

	count, err := store.Count(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, count, "insert is rolled back")
}

func TestFolderService_StorageErrorsAreWrapped(t *testing.T) {
	store := memory.New()
	svc := NewFolderService(failingStore{store}, store, testPagination, slog.New(slog.DiscardHandler))

	_, err := svc.GetByID(context.Background(), 1, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Contains(t, err.Error(), "get folder")

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "find", storageErr.Op)
}

func TestFolderService_Rename(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := mustCreate(t, svc, "Draft", nil, true)

	renamed, err := svc.Rename(ctx, f.ID, " Final ")
	require.NoError(t, err)
	assert.Equal(t, "Final", renamed.Name)
	assert.False(t, renamed.UpdatedAt.Before(f.UpdatedAt))

	_, err = svc.Rename(ctx, f.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Rename(ctx, 999, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.SoftDelete(ctx, f.ID))
	_, err = svc.Rename(ctx, f.ID, "Resurrected")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// buildChain creates A/B/C where A and B are containers and C is a file
func buildChain(t *testing.T, svc services.FolderWriter) (a, b, c *models.Folder) {
	t.Helper()
	a = mustCreate(t, svc, "A", nil, true)
	b = mustCreate(t, svc, "B", &a.ID, true)
	c = mustCreate(t, svc, "C", &b.ID, false)
	return a, b, c
}

func TestFolderService_SoftDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, b, c := buildChain(t, svc)
	sibling := mustCreate(t, svc, "Sibling", nil, true)

	require.NoError(t, svc.SoftDelete(ctx, a.ID))

	for _, id := range []int64{a.ID, b.ID, c.ID} {
		live, err := svc.GetByID(ctx, id, false)
		require.NoError(t, err)
		assert.Nil(t, live, "id %d should be hidden", id)

		deleted, err := svc.GetByID(ctx, id, true)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.NotNil(t, deleted.DeletedAt)
	}

	roots, err := svc.ListChildren(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, sibling.ID, roots[0].ID)

	count, err := svc.Count(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFolderService_SoftDeleteMissing(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.SoftDelete(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderService_RestoreUndoesSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, b, c := buildChain(t, svc)

	require.NoError(t, svc.SoftDelete(ctx, a.ID))

	restored, err := svc.Restore(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, restored.ID)
	assert.Nil(t, restored.DeletedAt)

	for _, id := range []int64{a.ID, b.ID, c.ID} {
		live, err := svc.GetByID(ctx, id, false)
		require.NoError(t, err)
		require.NotNil(t, live, "id %d should be visible again", id)
		assert.Nil(t, live.DeletedAt)
	}
}

func TestFolderService_RestoreErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	live := mustCreate(t, svc, "Live", nil, true)

	_, err := svc.Restore(ctx, live.ID)
	require.ErrorIs(t, err, domain.ErrBusinessRule)
	var ruleErr *domain.BusinessRuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, domain.CodeFolderNotDeleted, ruleErr.Code)

	_, err = svc.Restore(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderService_HardDeleteIsPermanent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, b, c := buildChain(t, svc)
	keep := mustCreate(t, svc, "Keep", nil, true)

	// a soft-deleted descendant is purged too
	require.NoError(t, svc.SoftDelete(ctx, c.ID))
	require.NoError(t, svc.HardDelete(ctx, a.ID))

	for _, id := range []int64{a.ID, b.ID, c.ID} {
		got, err := svc.GetByID(ctx, id, true)
		require.NoError(t, err)
		assert.Nil(t, got)
	}

	_, err := svc.Restore(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := svc.Count(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := svc.GetByID(ctx, keep.ID, false)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFolderService_ListChildrenOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	parent := mustCreate(t, svc, "Parent", nil, true)
	mustCreate(t, svc, "b.txt", &parent.ID, false)
	mustCreate(t, svc, "Zeta", &parent.ID, true)
	mustCreate(t, svc, "a.txt", &parent.ID, false)
	mustCreate(t, svc, "Alpha", &parent.ID, true)

	children, err := svc.ListChildren(ctx, &parent.ID)
	require.NoError(t, err)

	var names []string
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Alpha", "Zeta", "a.txt", "b.txt"}, names)
}

func TestFolderService_ListChildrenPageCompleteness(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	parent := mustCreate(t, svc, "Big", nil, true)

	want := make(map[int64]bool)
	for i := range 237 {
		f := mustCreate(t, svc, "file_"+strings.Repeat("x", i%5), &parent.ID, false)
		want[f.ID] = true
	}

	seen := make(map[int64]bool)
	var sizes []int
	cursor := ""
	for {
		page, err := svc.ListChildrenPage(ctx, &parent.ID, services.PageRequest{Limit: 50, Cursor: cursor})
		require.NoError(t, err)
		sizes = append(sizes, len(page.Data))

		var last int64
		for _, f := range page.Data {
			assert.False(t, seen[f.ID], "id %d returned twice", f.ID)
			assert.Greater(t, f.ID, last, "page is in id order")
			seen[f.ID] = true
			last = f.ID
		}

		if !page.Cursor.HasMore {
			assert.Nil(t, page.Cursor.Next)
			break
		}
		require.NotNil(t, page.Cursor.Next)
		cursor = *page.Cursor.Next
	}

	assert.Equal(t, []int{50, 50, 50, 50, 37}, sizes)
	assert.Equal(t, want, seen)
}

func TestFolderService_ListChildrenPageDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for range 120 {
		mustCreate(t, svc, "root", nil, false)
	}

	tests := []struct {
		name    string
		req     services.PageRequest
		wantLen int
	}{
		{"default limit", services.PageRequest{}, config.DefaultPageSize},
		{"capped limit", services.PageRequest{Limit: 1000}, config.MaxPageSize},
		{"garbage cursor starts over", services.PageRequest{Limit: 10, Cursor: "!!"}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListChildrenPage(ctx, nil, tt.req)
			require.NoError(t, err)
			assert.Len(t, page.Data, tt.wantLen)
			assert.True(t, page.Cursor.HasMore)
			assert.Equal(t, int64(1), page.Data[0].ID)
		})
	}
}

func TestFolderService_LazyTree(t *testing.T) {
	ctx := context.Background()
	store := &spyStore{FolderStore: memory.New()}
	mem := store.FolderStore.(*memory.Store)
	svc := NewFolderService(store, mem, testPagination, slog.New(slog.DiscardHandler))

	docs := mustCreate(t, svc, "Documents", nil, true)
	music := mustCreate(t, svc, "Music", nil, true)
	empty := mustCreate(t, svc, "Empty", nil, true)
	mustCreate(t, svc, "readme.txt", nil, false)
	reports := mustCreate(t, svc, "Reports", &docs.ID, true)
	mustCreate(t, svc, "song.mp3", &music.ID, false)
	mustCreate(t, svc, "Archive", &reports.ID, true)

	roots, err := svc.GetTree(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 3, "files are not part of the tree")
	assert.Equal(t, 1, store.counts, "one grouped count per level")

	hasChildren := make(map[int64]bool)
	for _, n := range roots {
		require.NotNil(t, n.HasChildren)
		hasChildren[n.ID] = *n.HasChildren
		assert.Empty(t, n.Children)
	}
	assert.True(t, hasChildren[docs.ID])
	assert.False(t, hasChildren[music.ID], "a folder holding only files has no subfolders")
	assert.False(t, hasChildren[empty.ID])

	level, err := svc.ListContainerChildren(ctx, &docs.ID)
	require.NoError(t, err)
	require.Len(t, level, 1)
	assert.Equal(t, reports.ID, level[0].ID)
	assert.True(t, *level[0].HasChildren)

	none, err := svc.ListContainerChildren(ctx, &empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFolderService_GetFullTree(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, b, _ := buildChain(t, svc)
	deleted := mustCreate(t, svc, "Gone", &a.ID, true)
	require.NoError(t, svc.SoftDelete(ctx, deleted.ID))

	tree, err := svc.GetFullTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, a.ID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, b.ID, tree[0].Children[0].ID)
	assert.Empty(t, tree[0].Children[0].Children, "files are left out")
}

func TestFolderService_SearchBlankQuerySkipsStorage(t *testing.T) {
	ctx := context.Background()
	store := &spyStore{}
	svc := NewFolderService(store, memory.New(), testPagination, slog.New(slog.DiscardHandler))

	for _, q := range []string{"", "   ", "\t\n"} {
		results, err := svc.Search(ctx, q, 10)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)

		page, err := svc.SearchPage(ctx, services.SearchRequest{Query: q})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
		assert.False(t, page.Cursor.HasMore)
	}
	assert.Zero(t, store.searches)
}

func TestFolderService_SearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	target := mustCreate(t, svc, "100%_done", nil, false)
	mustCreate(t, svc, "1000_done", nil, false)
	mustCreate(t, svc, "100x_done", nil, false)
	mustCreate(t, svc, "100%xdone", nil, false)
	backslash := mustCreate(t, svc, `C:\temp`, nil, false)

	tests := []struct {
		query string
		want  []int64
	}{
		{"100%_done", []int64{target.ID}},
		{"%_", []int64{target.ID}},
		{`\`, []int64{backslash.ID}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := svc.Search(ctx, tt.query, 0)
			require.NoError(t, err)

			var ids []int64
			for _, f := range results {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFolderService_SearchIsCaseSensitiveAndSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	docs := mustCreate(t, svc, "Docs", nil, true)
	mustCreate(t, svc, "docs.txt", nil, false)
	old := mustCreate(t, svc, "Docs old", nil, true)
	require.NoError(t, svc.SoftDelete(ctx, old.ID))

	results, err := svc.Search(ctx, " Docs ", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docs.ID, results[0].ID)
}

func TestFolderService_SearchLimit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for range 60 {
		mustCreate(t, svc, "match", nil, false)
	}

	results, err := svc.Search(ctx, "match", 0)
	require.NoError(t, err)
	assert.Len(t, results, config.MaxSearchResults)

	results, err = svc.Search(ctx, "match", 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestFolderService_SearchPage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for range 25 {
		mustCreate(t, svc, "hit", nil, false)
		mustCreate(t, svc, "miss", nil, false)
	}

	var total int
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10)
		page, err := svc.SearchPage(ctx, services.SearchRequest{Query: "hit", Limit: 10, Cursor: cursor})
		require.NoError(t, err)
		for _, f := range page.Data {
			assert.Equal(t, "hit", f.Name)
		}
		total += len(page.Data)
		if !page.Cursor.HasMore {
			break
		}
		cursor = *page.Cursor.Next
	}
	assert.Equal(t, 25, total)
}

func TestFolderService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	var ids []int64
	for range 7 {
		ids = append(ids, mustCreate(t, svc, "n", nil, true).ID)
	}
	require.NoError(t, svc.SoftDelete(ctx, ids[0]))

	page, err := svc.List(ctx, services.ListRequest{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 3, Total: 6, TotalPages: 2}, page.Pagination)
	require.Len(t, page.Data, 3)
	assert.Equal(t, ids[4], page.Data[0].ID)

	withDeleted, err := svc.List(ctx, services.ListRequest{Page: 0, Limit: 3, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, withDeleted.Pagination.Page)
	assert.Equal(t, 7, withDeleted.Pagination.Total)
	assert.Equal(t, ids[0], withDeleted.Data[0].ID)
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"docs", "%docs%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.query); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
