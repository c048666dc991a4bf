package hierarchy

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Loader fetches the reporting edges for one organization.
type Loader func(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

// Cache memoizes per-organization snapshots. Directory mutations call
// Invalidate so the next Snapshot call rebuilds from storage. Staleness is
// bounded by invalidation, not TTL: reads between a mutation and its
// invalidation may see the previous edges, which is acceptable because every
// decision path re-evaluates on the next request.
type Cache struct {
	loader Loader

	mu        sync.RWMutex
	snapshots map[uuid.UUID]*Snapshot
}

// NewCache creates a cache backed by the given loader.
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:    loader,
		snapshots: make(map[uuid.UUID]*Snapshot),
	}
}

// Snapshot returns the cached snapshot for an organization, loading it on
// first use.
func (c *Cache) Snapshot(ctx context.Context, orgID uuid.UUID) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[orgID]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}

	edges, err := c.loader(ctx, orgID)
	if err != nil {
		return nil, err
	}
	snap = NewSnapshot(edges)

	c.mu.Lock()
	// Another goroutine may have loaded meanwhile; last writer wins, both
	// snapshots were built from committed state.
	c.snapshots[orgID] = snap
	c.mu.Unlock()

	return snap, nil
}

// Invalidate drops the cached snapshot for an organization.
func (c *Cache) Invalidate(orgID uuid.UUID) {
	c.mu.Lock()
	delete(c.snapshots, orgID)
	c.mu.Unlock()
}
