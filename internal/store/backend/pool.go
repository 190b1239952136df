// Package backend wraps one or more Redis connection pools behind a
// delinquency-aware failover list, grounded on
// original_source/src/store/store.rs's r2d2::Pool<RedisConnectionManager>
// configuration shape (max_size, max_lifetime, idle_timeout,
// connection_timeout). The wire format (a hash-of-fields read/written
// with HGETALL/HSET) is explicitly a Redis shape, so go-redis/v9 is the
// transport used here.
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolConfig mirrors original_source's ConfigRedis section.
type PoolConfig struct {
	Host                     string
	Port                     int
	Password                 string
	Database                 int
	PoolSize                 int
	MaxLifetimeSeconds       int
	IdleTimeoutSeconds       int
	ConnectionTimeoutSeconds int
}

// defaultDelinquencyWindow is used when NewPools is given a zero window,
// e.g. by tests that build a Pools directly.
const defaultDelinquencyWindow = 30 * time.Second

// pool is one backend connection pool plus its delinquency timestamp.
type pool struct {
	client     *redis.Client
	window     time.Duration
	mu         sync.RWMutex
	delinquent time.Time
}

func (p *pool) isDelinquent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Now().Before(p.delinquent)
}

func (p *pool) markDelinquent() {
	p.mu.Lock()
	p.delinquent = time.Now().Add(p.window)
	p.mu.Unlock()
}

func (p *pool) clearDelinquent() {
	p.mu.Lock()
	p.delinquent = time.Time{}
	p.mu.Unlock()
}

// Pools is an ordered list of Redis backends. Operations try each
// non-delinquent pool in order, marking a pool delinquent on failure and
// trying the next, returning ErrAllDelinquent only when every pool has
// failed.
type Pools struct {
	pools []*pool
}

// ErrAllDelinquent is returned when every configured backend pool is
// currently marked delinquent or every attempt failed.
var ErrAllDelinquent = fmt.Errorf("backend: all pools delinquent")

// NewPools builds one *redis.Client per config entry. The first entry is
// the primary pool; any further entries serve as rescue/failover pools,
// tried in order once the primary is marked delinquent. delinquencyWindow
// is how long a pool is skipped after a failed operation before it's
// retried again; zero falls back to defaultDelinquencyWindow.
func NewPools(configs []PoolConfig, delinquencyWindow time.Duration) *Pools {
	if delinquencyWindow <= 0 {
		delinquencyWindow = defaultDelinquencyWindow
	}

	pools := make([]*pool, 0, len(configs))
	for _, c := range configs {
		client := redis.NewClient(&redis.Options{
			Addr:            fmt.Sprintf("%s:%d", c.Host, c.Port),
			Password:        c.Password,
			DB:              c.Database,
			PoolSize:        c.PoolSize,
			ConnMaxLifetime: time.Duration(c.MaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(c.IdleTimeoutSeconds) * time.Second,
			DialTimeout:     time.Duration(c.ConnectionTimeoutSeconds) * time.Second,
			PoolTimeout:     time.Duration(c.ConnectionTimeoutSeconds) * time.Second,
		})
		pools = append(pools, &pool{client: client, window: delinquencyWindow})
	}
	return &Pools{pools: pools}
}

// HGetAll tries each non-delinquent pool in order, returning the first
// successful HGETALL reply. An empty map with no error means the key
// doesn't exist (the caller maps that to NotFound).
func (p *Pools) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var lastErr error
	tried := false

	for _, bp := range p.pools {
		if bp.isDelinquent() {
			continue
		}
		tried = true

		res, err := bp.client.HGetAll(ctx, key).Result()
		if err != nil {
			bp.markDelinquent()
			lastErr = err
			continue
		}
		bp.clearDelinquent()
		return res, nil
	}

	if !tried {
		return nil, ErrAllDelinquent
	}
	return nil, fmt.Errorf("backend: HGetAll %s: %w: %w", key, lastErr, ErrAllDelinquent)
}

// HSet writes fields to key on the primary pool only (writes are never
// load-balanced across rescue pools, since the HTTP control plane expects
// a single source of truth).
func (p *Pools) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(p.pools) == 0 {
		return ErrAllDelinquent
	}
	primary := p.pools[0]

	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	if err := primary.client.HSet(ctx, key, values...).Err(); err != nil {
		primary.markDelinquent()
		return fmt.Errorf("backend: HSet %s: %w", key, err)
	}
	primary.clearDelinquent()
	return nil
}

// Del removes key from the primary pool.
func (p *Pools) Del(ctx context.Context, key string) error {
	if len(p.pools) == 0 {
		return ErrAllDelinquent
	}
	primary := p.pools[0]

	if err := primary.client.Del(ctx, key).Err(); err != nil {
		primary.markDelinquent()
		return fmt.Errorf("backend: Del %s: %w", key, err)
	}
	primary.clearDelinquent()
	return nil
}

// Close closes every underlying client.
func (p *Pools) Close() error {
	var firstErr error
	for _, bp := range p.pools {
		if err := bp.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AllDelinquent reports whether every pool is currently marked
// delinquent, used by the façade to distinguish "Disconnected" from
// "NotFound".
func (p *Pools) AllDelinquent() bool {
	for _, bp := range p.pools {
		if !bp.isDelinquent() {
			return false
		}
	}
	return len(p.pools) > 0
}
