// Package store is the record store façade: a read-through local cache
// in front of a sharded/pooled remote backend, with delinquency failover
// and an external-origin rate limit. Grounded on
// original_source/src/store/store.rs for the operation shape and on
// original_source/src/store/key.rs / cache.rs / flush.rs for keying and
// sweep semantics; the layered-cache structural idiom (persistent
// backend plus in-memory front cache) is generalized here to a
// remote-plus-local layering instead.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authdns/internal/logging"
	"authdns/internal/model"
	"authdns/internal/store/backend"
)

// Sentinel errors returned by Get/Set/Remove.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrDisconnected = errors.New("store: disconnected")
	ErrEncoding     = errors.New("store: encoding failure")
	ErrConnector    = errors.New("store: connector failure")
)

// sweepInterval is the cadence of the background expire/refresh pass,
// adopted from original_source/src/store/flush.rs's FLUSH_PERFORM_INTERVAL.
const sweepInterval = 20 * time.Second

// defaultCacheExpireSeconds/defaultCacheRefreshSeconds are the fallback
// durations used when the config's redis section leaves them unset (e.g.
// in tests that build a Store directly).
const (
	defaultCacheExpireSeconds  = 300
	defaultCacheRefreshSeconds = 60
)

// Store is the façade used by the pipeline, the HTTP control plane and
// the health checker.
type Store struct {
	pools   *backend.Pools
	cache   *localCache
	limiter *budgetLimiter
	log     *logging.Logger

	// expireTTL bounds how long a cache entry survives without being
	// accessed; refreshInterval is how stale RefreshedAt must be before
	// the sweeper reissues a remote fetch for it. Both are sourced from
	// the redis config section's cache_expire_seconds/cache_refresh_seconds.
	expireTTL       time.Duration
	refreshInterval time.Duration
}

// New builds a Store over the given backend pools. expireSeconds and
// refreshSeconds are the redis config's cache_expire_seconds and
// cache_refresh_seconds; a zero value falls back to a sane default.
func New(pools *backend.Pools, expireSeconds, refreshSeconds int, log *logging.Logger) (*Store, error) {
	cache, err := newLocalCache()
	if err != nil {
		return nil, fmt.Errorf("store: init local cache: %w", err)
	}

	if expireSeconds <= 0 {
		expireSeconds = defaultCacheExpireSeconds
	}
	if refreshSeconds <= 0 {
		refreshSeconds = defaultCacheRefreshSeconds
	}

	return &Store{
		pools:           pools,
		cache:           cache,
		limiter:         newBudgetLimiter(),
		log:             log,
		expireTTL:       time.Duration(expireSeconds) * time.Second,
		refreshInterval: time.Duration(refreshSeconds) * time.Second,
	}, nil
}

// Get fetches a StoreRecord for (zone, name, kind). origin determines
// whether the external rate-limit budget applies. Returns ErrNotFound if
// the name is confirmed absent (positively or negatively cached, or a
// confirmed-empty remote reply), ErrDisconnected if every backend is
// delinquent or the external budget is exhausted, ErrCorrupted if the
// remote hash does not decode into a valid record, or wraps ErrConnector
// on transport failure against an otherwise-healthy pool.
func (s *Store) Get(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) (*model.StoreRecord, error) {
	key := localKey(zone, name, kind)

	if entry, ok := s.cache.get(key); ok {
		if entry.Record == nil {
			return nil, ErrNotFound
		}
		return entry.Record, nil
	}

	if origin := originFromContext(ctx); origin == OriginExternal {
		if !s.limiter.Allow() {
			return nil, ErrDisconnected
		}
	}

	start := time.Now()
	fields, err := s.pools.HGetAll(ctx, remoteKey(zone, name, kind))
	elapsed := time.Since(start)

	if originFromContext(ctx) == OriginExternal {
		s.limiter.Record(elapsed)
	}

	if err != nil {
		if errors.Is(err, backend.ErrAllDelinquent) || s.pools.AllDelinquent() {
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("%w: %v", ErrConnector, err)
	}

	if len(fields) == 0 {
		s.cache.set(key, zone, name, kind, nil)
		return nil, ErrNotFound
	}

	_, record, err := decodeRecord(fields)
	if err != nil {
		s.log.Errorf("store: corrupted record at %s: %v", remoteKey(zone, name, kind), err)
		return nil, ErrCorrupted
	}

	s.cache.set(key, zone, name, kind, record)
	return record, nil
}

// Set writes record through to the primary backend and invalidates the
// local cache slot so the next Get re-fetches.
func (s *Store) Set(ctx context.Context, zone model.ZoneName, name model.RecordName, record *model.StoreRecord) error {
	fields, err := encodeRecord(name, record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	if err := s.pools.HSet(ctx, remoteKey(zone, name, record.Kind), fields); err != nil {
		return fmt.Errorf("%w: %v", ErrConnector, err)
	}

	s.cache.invalidate(localKey(zone, name, record.Kind))
	return nil
}

// Remove deletes the record at (zone, name, kind) and invalidates the
// local cache slot.
func (s *Store) Remove(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) error {
	if err := s.pools.Del(ctx, remoteKey(zone, name, kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnector, err)
	}
	s.cache.invalidate(localKey(zone, name, kind))
	return nil
}

// Sweep runs one expire+refresh pass over the local cache, intended to be
// driven by supervise.Loop at sweepInterval. Expire drops entries whose
// AccessedAt predates expireTTL (cache_expire_seconds); refresh re-fetches,
// in place, entries whose RefreshedAt has gone stale past refreshInterval
// (cache_refresh_seconds), preserving AccessedAt exactly as
// original_source/src/store/cache.rs's StoreCacheFlush::refresh does. A
// refresh that fails (backend delinquent, transport error) leaves the old
// entry in place rather than evicting it, so a transient backend hiccup
// doesn't manufacture a cache miss.
func (s *Store) Sweep(ctx context.Context) {
	expired := s.cache.expireOlderThan(time.Now().Add(-s.expireTTL))
	if expired > 0 {
		s.log.Debugf("store sweep: expired %d stale cache entries", expired)
	}

	stale := s.cache.staleRefreshedBefore(time.Now().Add(-s.refreshInterval))
	refreshed := 0
	for _, se := range stale {
		if s.refreshEntry(ctx, se) {
			refreshed++
		}
	}
	if refreshed > 0 {
		s.log.Debugf("store sweep: refreshed %d stale cache entries in place", refreshed)
	}
}

// refreshEntry re-fetches a single stale cache entry's remote value and
// writes it back under the same key, preserving AccessedAt. Returns false
// (leaving the old entry untouched) on any backend failure.
func (s *Store) refreshEntry(ctx context.Context, se staleEntry) bool {
	fields, err := s.pools.HGetAll(ctx, remoteKey(se.Entry.Zone, se.Entry.Name, se.Entry.Kind))
	if err != nil {
		return false
	}

	if len(fields) == 0 {
		s.cache.touchRefreshed(se.Key, nil)
		return true
	}

	_, record, err := decodeRecord(fields)
	if err != nil {
		s.log.Errorf("store sweep: corrupted record at %s: %v", remoteKey(se.Entry.Zone, se.Entry.Name, se.Entry.Kind), err)
		return false
	}

	s.cache.touchRefreshed(se.Key, record)
	return true
}

// SweepInterval exposes the tick cadence for the owning supervise.Loop.
func SweepInterval() time.Duration { return sweepInterval }

type originKey struct{}

// WithOrigin attaches an Origin to ctx for Get to read.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFromContext(ctx context.Context) Origin {
	if o, ok := ctx.Value(originKey{}).(Origin); ok {
		return o
	}
	return OriginExternal
}
