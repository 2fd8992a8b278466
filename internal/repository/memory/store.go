package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"explorer/internal/domain/models"
	"explorer/internal/domain/repositories"
)

type txMarker struct{}

// Store keeps folders in process memory. It implements both
// repositories.FolderStore and repositories.TransactionManager, so it can back
// the service in tests and with STORAGE=memory.
//
// Writes inside an open transaction are invisible to readers outside it: those
// readers wait until the transaction commits or rolls back.
type Store struct {
	// txMu is held exclusively by writers and transactions for their whole
	// duration, and shared by readers outside a transaction
	txMu sync.RWMutex

	mu      sync.RWMutex
	folders map[int64]*models.Folder
	nextID  int64
	now     func() time.Time
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		folders: make(map[int64]*models.Folder),
		nextID:  1,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ExecTx runs fn while holding the writer lock and restores a snapshot when fn fails
func (s *Store) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot, nextID := s.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.folders = snapshot
		s.nextID = nextID
		s.mu.Unlock()
		return err
	}

	return nil
}

func (s *Store) FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	defer s.lockRead(ctx)()

	s.mu.RLock()
	defer s.mu.RUnlock()

	folder, ok := s.folders[id]
	if !ok || (!includeDeleted && folder.IsDeleted()) {
		return nil, nil
	}
	return clone(folder), nil
}

func (s *Store) Insert(ctx context.Context, folder *models.Folder) error {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	folder.ID = s.nextID
	s.nextID++
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = s.now()
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = folder.CreatedAt
	}
	s.folders[folder.ID] = clone(folder)
	return nil
}

func (s *Store) UpdateName(ctx context.Context, id int64, name string, updatedAt time.Time) (int64, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[id]
	if !ok || folder.IsDeleted() {
		return 0, nil
	}
	folder.Name = name
	folder.UpdatedAt = updatedAt
	return 1, nil
}

func (s *Store) ListChildIDs(ctx context.Context, parentIDs []int64, includeDeleted bool) ([]int64, error) {
	defer s.lockRead(ctx)()

	s.mu.RLock()
	defer s.mu.RUnlock()

	parents := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}

	var ids []int64
	for _, folder := range s.folders {
		if folder.ParentID == nil {
			continue
		}
		if _, ok := parents[*folder.ParentID]; !ok {
			continue
		}
		if !includeDeleted && folder.IsDeleted() {
			continue
		}
		ids = append(ids, folder.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) SetDeletedAt(ctx context.Context, ids []int64, at *time.Time) (int64, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var affected int64
	for _, id := range ids {
		folder, ok := s.folders[id]
		if !ok {
			continue
		}
		if at == nil {
			folder.DeletedAt = nil
		} else {
			deletedAt := *at
			folder.DeletedAt = &deletedAt
		}
		folder.UpdatedAt = now
		affected++
	}
	return affected, nil
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		if _, ok := s.folders[id]; ok {
			delete(s.folders, id)
			affected++
		}
	}
	return affected, nil
}

func (s *Store) Count(ctx context.Context, includeDeleted bool) (int, error) {
	defer s.lockRead(ctx)()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, folder := range s.folders {
		if includeDeleted || !folder.IsDeleted() {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListByParent(ctx context.Context, parentID *int64, containersOnly bool) ([]models.Folder, error) {
	defer s.lockRead(ctx)()
	folders := s.filter(func(f *models.Folder) bool {
		return !f.IsDeleted() && sameParent(f.ParentID, parentID) && (!containersOnly || f.IsContainer)
	})
	sortContainersFirst(folders)
	return folders, nil
}

func (s *Store) ListByParentAfter(ctx context.Context, parentID *int64, afterID int64, limit int) ([]models.Folder, error) {
	defer s.lockRead(ctx)()
	folders := s.filter(func(f *models.Folder) bool {
		return !f.IsDeleted() && sameParent(f.ParentID, parentID) && f.ID > afterID
	})
	sortByID(folders)
	return truncate(folders, limit), nil
}

func (s *Store) CountChildren(ctx context.Context, parentIDs []int64, containersOnly bool) (map[int64]int, error) {
	defer s.lockRead(ctx)()

	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = struct{}{}
	}

	counts := make(map[int64]int)
	for _, folder := range s.folders {
		if folder.ParentID == nil || folder.IsDeleted() || (containersOnly && !folder.IsContainer) {
			continue
		}
		if _, ok := wanted[*folder.ParentID]; ok {
			counts[*folder.ParentID]++
		}
	}
	return counts, nil
}

func (s *Store) ListContainers(ctx context.Context) ([]models.Folder, error) {
	defer s.lockRead(ctx)()
	folders := s.filter(func(f *models.Folder) bool {
		return !f.IsDeleted() && f.IsContainer
	})
	sortContainersFirst(folders)
	return folders, nil
}

func (s *Store) SearchByName(ctx context.Context, pattern string, afterID int64, limit int, orderByID bool) ([]models.Folder, error) {
	defer s.lockRead(ctx)()
	folders := s.filter(func(f *models.Folder) bool {
		if f.IsDeleted() || !matchLike(pattern, f.Name) {
			return false
		}
		return !orderByID || f.ID > afterID
	})
	if orderByID {
		sortByID(folders)
	} else {
		sortContainersFirst(folders)
	}
	return truncate(folders, limit), nil
}

func (s *Store) ListPage(ctx context.Context, offset, limit int, includeDeleted bool) ([]models.Folder, error) {
	defer s.lockRead(ctx)()
	folders := s.filter(func(f *models.Folder) bool {
		return includeDeleted || !f.IsDeleted()
	})
	sortContainersFirst(folders)
	if offset >= len(folders) {
		return []models.Folder{}, nil
	}
	return truncate(folders[offset:], limit), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// lockWrite takes the writer lock unless ctx already belongs to a transaction
func (s *Store) lockWrite(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// lockRead waits out any open transaction unless ctx belongs to it
func (s *Store) lockRead(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

func (s *Store) snapshot() (map[int64]*models.Folder, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[int64]*models.Folder, len(s.folders))
	for id, folder := range s.folders {
		copied[id] = clone(folder)
	}
	return copied, s.nextID
}

func (s *Store) filter(keep func(*models.Folder) bool) []models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folders := []models.Folder{}
	for _, folder := range s.folders {
		if keep(folder) {
			folders = append(folders, *clone(folder))
		}
	}
	return folders
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

func clone(f *models.Folder) *models.Folder {
	c := *f
	if f.ParentID != nil {
		parentID := *f.ParentID
		c.ParentID = &parentID
	}
	if f.DeletedAt != nil {
		deletedAt := *f.DeletedAt
		c.DeletedAt = &deletedAt
	}
	return &c
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortByID(folders []models.Folder) {
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
}

func sortContainersFirst(folders []models.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		a, b := folders[i], folders[j]
		if a.IsContainer != b.IsContainer {
			return a.IsContainer
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func truncate(folders []models.Folder, limit int) []models.Folder {
	if limit >= 0 && len(folders) > limit {
		return folders[:limit]
	}
	return folders
}
