package store

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"authdns/internal/model"
)

// cacheEntry is the store façade's local cache entry:
// (Option<StoreRecord>, refreshedAt, accessedAt). A nil Record is a
// negative cache — the name is confirmed absent upstream. Zone/Name/Kind
// are carried alongside the record so the sweeper can reissue a remote
// fetch against the same coordinates when refreshing in place.
type cacheEntry struct {
	Zone        model.ZoneName
	Name        model.RecordName
	Kind        model.RecordType
	Record      *model.StoreRecord
	RefreshedAt time.Time
	AccessedAt  time.Time
}

// localCache is the read-through cache in front of the remote backend.
// Backed by ristretto for concurrent get/set, with a side index of keys
// so the sweeper can walk entries by age — ristretto itself has no
// iteration API, so sweeping needs its own bookkeeping (§1b: "use the
// library the corpus's own module graph already pulls in for this exact
// concern" covers the storage, not the enumeration, which is new code).
type localCache struct {
	ristretto *ristretto.Cache

	mu      sync.Mutex
	index   map[string]*cacheEntry
}

func newLocalCache() (*localCache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e7,
		MaxCost:     1 << 28, // 256 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &localCache{
		ristretto: rc,
		index:     make(map[string]*cacheEntry),
	}, nil
}

func (c *localCache) get(key string) (*cacheEntry, bool) {
	v, ok := c.ristretto.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry)

	c.mu.Lock()
	entry.AccessedAt = time.Now()
	c.mu.Unlock()

	return entry, true
}

func (c *localCache) set(key string, zone model.ZoneName, name model.RecordName, kind model.RecordType, record *model.StoreRecord) {
	now := time.Now()
	entry := &cacheEntry{Zone: zone, Name: name, Kind: kind, Record: record, RefreshedAt: now, AccessedAt: now}

	c.mu.Lock()
	c.index[key] = entry
	c.mu.Unlock()

	c.ristretto.Set(key, entry, 1)
}

func (c *localCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()
	c.ristretto.Del(key)
}

// snapshot returns a copy of the index for sweeping, cheap enough at the
// 20-second tick cadence this is driven at.
func (c *localCache) snapshot() map[string]*cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*cacheEntry, len(c.index))
	for k, v := range c.index {
		out[k] = v
	}
	return out
}

// expireOlderThan drops every entry whose AccessedAt predates cutoff,
// mirroring original_source/src/store/cache.rs's StoreCacheFlush::expire.
func (c *localCache) expireOlderThan(cutoff time.Time) int {
	expired := 0
	for key, entry := range c.snapshot() {
		if entry.AccessedAt.Before(cutoff) {
			c.invalidate(key)
			expired++
		}
	}
	return expired
}

// staleEntry pairs a cache key with the entry found stale, so the
// sweeper can reissue a remote fetch against its (zone, name, kind).
type staleEntry struct {
	Key   string
	Entry *cacheEntry
}

// staleRefreshedBefore returns the entries whose RefreshedAt predates
// cutoff, for the sweeper's refresh pass.
func (c *localCache) staleRefreshedBefore(cutoff time.Time) []staleEntry {
	var stale []staleEntry
	for key, entry := range c.snapshot() {
		if entry.RefreshedAt.Before(cutoff) {
			stale = append(stale, staleEntry{Key: key, Entry: entry})
		}
	}
	return stale
}

// touchRefreshed updates RefreshedAt (and the cached record, which may be
// nil for a confirmed-absent refresh) to now while preserving AccessedAt,
// matching the Rust original's refresh() semantics exactly.
func (c *localCache) touchRefreshed(key string, record *model.StoreRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[key]
	if !ok {
		return
	}
	entry.Record = record
	entry.RefreshedAt = time.Now()
	c.ristretto.Set(key, entry, 1)
}
