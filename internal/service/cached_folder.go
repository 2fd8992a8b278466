package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"explorer/internal/cache"
	"explorer/internal/domain/models"
	"explorer/internal/domain/services"
	"explorer/internal/traversal"

	"golang.org/x/sync/singleflight"
)

// Cache key layout. Every key lives under FolderKeyPrefix so a single prefix
// delete clears all hierarchy reads.
const (
	FolderKeyPrefix      = "folder:"
	treeKey              = FolderKeyPrefix + "tree"
	fullTreeKey          = FolderKeyPrefix + "tree:full"
	childrenKeyPrefix    = FolderKeyPrefix + "children:"
	subfoldersKeyPrefix  = FolderKeyPrefix + "children:folders:"
	searchBasicKeyPrefix = FolderKeyPrefix + "search:basic:"
	searchPageKeyPrefix  = FolderKeyPrefix + "search:cursor:"
)

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]`)

// CacheTTLs sets how long each family of reads stays cached
type CacheTTLs struct {
	Tree   time.Duration // tree and child listings
	Search time.Duration
}

type cachedFolderService struct {
	inner  services.FolderService
	cache  cache.Cache
	ttls   CacheTTLs
	group  singleflight.Group
	logger *slog.Logger

	// generation advances on every invalidation. A read only leaves its result
	// in the cache if no invalidation ran since it started.
	generation atomic.Uint64
}

// NewCachedFolderService wraps a FolderService with read-through caching.
// Successful writes clear every cached hierarchy read.
func NewCachedFolderService(inner services.FolderService, c cache.Cache, ttls CacheTTLs, logger *slog.Logger) services.FolderService {
	return &cachedFolderService{
		inner:  inner,
		cache:  c,
		ttls:   ttls,
		logger: logger,
	}
}

func (s *cachedFolderService) GetTree(ctx context.Context) ([]*models.FolderTreeNode, error) {
	return cached(ctx, s, treeKey, s.ttls.Tree, s.inner.GetTree)
}

func (s *cachedFolderService) GetFullTree(ctx context.Context) ([]*models.FolderTreeNode, error) {
	return cached(ctx, s, fullTreeKey, s.ttls.Tree, s.inner.GetFullTree)
}

func (s *cachedFolderService) ListChildren(ctx context.Context, parentID *int64) ([]models.Folder, error) {
	key := childrenKeyPrefix + parentKey(parentID)
	return cached(ctx, s, key, s.ttls.Tree, func(ctx context.Context) ([]models.Folder, error) {
		return s.inner.ListChildren(ctx, parentID)
	})
}

func (s *cachedFolderService) ListChildrenPage(ctx context.Context, parentID *int64, req services.PageRequest) (*models.CursorPage, error) {
	key := fmt.Sprintf("%s%s:cursor:%s:%s", childrenKeyPrefix, parentKey(parentID), cursorKey(req.Cursor), limitKey(req.Limit))
	return cached(ctx, s, key, s.ttls.Tree, func(ctx context.Context) (*models.CursorPage, error) {
		return s.inner.ListChildrenPage(ctx, parentID, req)
	})
}

func (s *cachedFolderService) ListContainerChildren(ctx context.Context, parentID *int64) ([]*models.FolderTreeNode, error) {
	key := subfoldersKeyPrefix + parentKey(parentID)
	return cached(ctx, s, key, s.ttls.Tree, func(ctx context.Context) ([]*models.FolderTreeNode, error) {
		return s.inner.ListContainerChildren(ctx, parentID)
	})
}

func (s *cachedFolderService) Search(ctx context.Context, query string, limit int) ([]models.Folder, error) {
	// Blank queries never reach storage, nothing to cache
	if strings.TrimSpace(query) == "" {
		return s.inner.Search(ctx, query, limit)
	}
	key := fmt.Sprintf("%s%s:%s", searchBasicKeyPrefix, queryKey(query), limitKey(limit))
	return cached(ctx, s, key, s.ttls.Search, func(ctx context.Context) ([]models.Folder, error) {
		return s.inner.Search(ctx, query, limit)
	})
}

func (s *cachedFolderService) SearchPage(ctx context.Context, req services.SearchRequest) (*models.CursorPage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return s.inner.SearchPage(ctx, req)
	}
	key := fmt.Sprintf("%s%s:cursor:%s:%s", searchPageKeyPrefix, queryKey(req.Query), cursorKey(req.Cursor), limitKey(req.Limit))
	return cached(ctx, s, key, s.ttls.Search, func(ctx context.Context) (*models.CursorPage, error) {
		return s.inner.SearchPage(ctx, req)
	})
}

func (s *cachedFolderService) GetByID(ctx context.Context, id int64, includeDeleted bool) (*models.Folder, error) {
	return s.inner.GetByID(ctx, id, includeDeleted)
}

func (s *cachedFolderService) Count(ctx context.Context, includeDeleted bool) (int, error) {
	return s.inner.Count(ctx, includeDeleted)
}

func (s *cachedFolderService) List(ctx context.Context, req services.ListRequest) (*models.OffsetPage, error) {
	return s.inner.List(ctx, req)
}

func (s *cachedFolderService) Create(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	folder, err := s.inner.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "create", folder.ID)
	return folder, nil
}

func (s *cachedFolderService) Rename(ctx context.Context, id int64, name string) (*models.Folder, error) {
	folder, err := s.inner.Rename(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "rename", id)
	return folder, nil
}

func (s *cachedFolderService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.inner.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "soft delete", id)
	return nil
}

func (s *cachedFolderService) HardDelete(ctx context.Context, id int64) error {
	if err := s.inner.HardDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "hard delete", id)
	return nil
}

func (s *cachedFolderService) Restore(ctx context.Context, id int64) (*models.Folder, error) {
	folder, err := s.inner.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "restore", id)
	return folder, nil
}

// invalidate drops every hierarchy read. A failure only costs staleness up to
// the TTL, so it is logged and swallowed.
func (s *cachedFolderService) invalidate(ctx context.Context, op string, id int64) {
	s.generation.Add(1)
	if err := s.cache.DeletePrefix(ctx, FolderKeyPrefix); err != nil {
		s.logger.Warn("cache invalidation failed", "op", op, "id", id, "error", err)
		return
	}
	s.logger.Debug("folder cache invalidated", "op", op, "id", id)
}

// cached serves key from the cache, collapsing concurrent misses on the same
// key into one call to fetch. The flight key carries the generation, so a read
// that starts after a write never joins a fetch that began before it.
func cached[T any](ctx context.Context, s *cachedFolderService, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	gen := s.generation.Load()
	current := func() bool { return s.generation.Load() == gen }

	// The shared fetch must outlive any one caller giving up
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		return cache.GetOrSetGuarded(flightCtx, s.cache, s.logger, key, ttl, fetch, current)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func parentKey(parentID *int64) string {
	if parentID == nil {
		return "root"
	}
	return strconv.FormatInt(*parentID, 10)
}

// cursorKey normalises a cursor to the id it decodes to, so every spelling of
// "no cursor" shares one entry
func cursorKey(cursor string) string {
	id := traversal.DecodeCursor(cursor)
	if id == 0 {
		return "first"
	}
	return strconv.FormatInt(id, 10)
}

func limitKey(limit int) string {
	if limit <= 0 {
		return "default"
	}
	return strconv.Itoa(limit)
}

// queryKey is a readable, lower-cased form of the query plus a hash of the
// exact trimmed text. Search is case-sensitive, so "Docs" and "docs" must not
// share an entry even though their readable parts match.
func queryKey(query string) string {
	trimmed := strings.TrimSpace(query)
	readable := nonKeyChars.ReplaceAllString(strings.ToLower(trimmed), "_")
	h := fnv.New32a()
	h.Write([]byte(trimmed))
	return fmt.Sprintf("%s:%08x", readable, h.Sum32())
}
