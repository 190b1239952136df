// Package flatten implements CNAME flattening: resolving a stored
// CNAME's target against upstream resolvers and caching the flattened
// values under the outer query type, so a query for A/AAAA/MX/TXT/CAA
// against a flatten=true CNAME record returns those values directly
// instead of the CNAME chain. Grounded directly on
// original_source/src/dns/flatten.rs, the richest single grounding file
// in the pack for this component: the registry/bootstrap-queue/maintain
// split, the cache-miss-enqueues-and-errors semantics, and the
// error-preserves-old-value rule all carry over exactly. The recursive
// lookup itself is built on github.com/miekg/dns against a flat list of
// forward resolvers, replacing hickory_resolver::Resolver; concurrent
// bootstrap enqueues for the same key are coalesced with
// golang.org/x/sync/singleflight.
package flatten

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"

	"authdns/internal/logging"
	"authdns/internal/model"
)

const (
	ResolverTimeout        = 3 * time.Second
	ResolverAttempts       = 3
	BootstrapTick          = 100 * time.Millisecond
	MaintainTick           = 60 * time.Second
	MaintainExpireTTLRatio = 10
)

// registryKey identifies a flatten registry slot by (value, outer query
// type).
type registryKey struct {
	Value model.RecordValue
	Type  model.RecordType
}

// entry is one flattened-values cache slot.
type entry struct {
	Values      []model.RecordValue
	TTL         uint32
	RefreshedAt time.Time
	AccessedAt  time.Time
}

// bootstrapOrder is a pending flatten request discovered by a cache miss.
type bootstrapOrder struct {
	Key registryKey
	TTL uint32
}

// Flattener holds the flatten registry, the bootstrap queue and the
// upstream DNS client used to resolve flatten targets.
type Flattener struct {
	mu       sync.RWMutex
	registry map[registryKey]*entry

	bootstrapMu sync.Mutex
	bootstrap   map[registryKey]uint32

	resolvers []string
	client    *dns.Client
	group     singleflight.Group
	log       *logging.Logger
}

// New builds a Flattener that resolves against the given upstream
// resolver addresses (host or host:port; ":53" is appended when no port
// is present).
func New(resolvers []string, log *logging.Logger) *Flattener {
	return &Flattener{
		registry:  make(map[registryKey]*entry),
		bootstrap: make(map[registryKey]uint32),
		resolvers: normalizeResolvers(resolvers),
		client:    &dns.Client{Timeout: ResolverTimeout},
		log:       log,
	}
}

func normalizeResolvers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if strings.Contains(r, ":") && !strings.HasSuffix(r, ":53") {
			out = append(out, r)
			continue
		}
		if strings.HasSuffix(r, ":53") {
			out = append(out, r)
			continue
		}
		out = append(out, r+":53")
	}
	return out
}

// Pass returns the flattened values for (value, outerType), queuing a
// background bootstrap and returning an error if nothing is cached yet —
// matching the Rust original's pass(): the caller falls back to the
// unflattened CNAME value on error. ttl is the record's effective TTL,
// stamped onto any newly-queued bootstrap order.
func (f *Flattener) Pass(value model.RecordValue, outerType model.RecordType, ttl uint32) ([]model.RecordValue, error) {
	key := registryKey{Value: value, Type: outerType}

	f.mu.Lock()
	if e, ok := f.registry[key]; ok {
		e.AccessedAt = time.Now()
		values := e.Values
		f.mu.Unlock()
		return values, nil
	}
	f.mu.Unlock()

	f.queue(key, ttl)
	return nil, fmt.Errorf("flatten: no cached value yet for %s/%s", value, outerType)
}

func (f *Flattener) queue(key registryKey, ttl uint32) {
	f.bootstrapMu.Lock()
	f.bootstrap[key] = ttl
	f.bootstrapMu.Unlock()
}

// RegistrySize reports the number of cached flatten entries, exposed for
// the ambient observer's gauge.
func (f *Flattener) RegistrySize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.registry)
}

// resolve performs the actual upstream lookup for one registry key,
// returning the flattened string values or an error.
func (f *Flattener) resolve(ctx context.Context, key registryKey) ([]model.RecordValue, error) {
	name := dns.Fqdn(string(key.Value))

	var qtype uint16
	switch key.Type {
	case model.TypeA:
		qtype = dns.TypeA
	case model.TypeAAAA:
		qtype = dns.TypeAAAA
	case model.TypeMX:
		qtype = dns.TypeMX
	case model.TypeTXT:
		qtype = dns.TypeTXT
	case model.TypeCAA:
		qtype = dns.TypeCAA
	case model.TypePTR, model.TypeCNAME:
		// Unsupported flatten targets: flatten to nothing, matching the
		// Rust original exactly.
		return nil, nil
	default:
		return nil, fmt.Errorf("flatten: unsupported outer type %q", key.Type)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true

	var lastErr error
	for attempt := 0; attempt < ResolverAttempts; attempt++ {
		for _, resolver := range f.resolvers {
			resp, _, err := f.client.ExchangeContext(ctx, msg, resolver)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("flatten: upstream rcode %s", dns.RcodeToString[resp.Rcode])
				continue
			}
			return rrsToValues(resp.Answer, key.Type), nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("flatten: no resolvers configured")
	}
	return nil, lastErr
}

func rrsToValues(answers []dns.RR, outer model.RecordType) []model.RecordValue {
	values := make([]model.RecordValue, 0, len(answers))
	for _, rr := range answers {
		switch r := rr.(type) {
		case *dns.A:
			if outer == model.TypeA {
				values = append(values, model.RecordValue(r.A.String()))
			}
		case *dns.AAAA:
			if outer == model.TypeAAAA {
				values = append(values, model.RecordValue(r.AAAA.String()))
			}
		case *dns.MX:
			if outer == model.TypeMX {
				values = append(values, model.RecordValue(fmt.Sprintf("%d %s", r.Preference, strings.TrimSuffix(r.Mx, "."))))
			}
		case *dns.TXT:
			if outer == model.TypeTXT {
				values = append(values, model.RecordValue(strings.Join(r.Txt, "")))
			}
		case *dns.CAA:
			if outer == model.TypeCAA {
				values = append(values, model.RecordValue(fmt.Sprintf("%d %s \"%s\"", r.Flag, r.Tag, r.Value)))
			}
		}
	}
	return values
}

// flatten resolves registryKey and commits the result to the registry,
// preserving accessedAt if given (used by the maintain refresh pass) and
// never overwriting an existing good value with an error, matching the
// Rust original's in-error refresh protection.
func (f *Flattener) flatten(ctx context.Context, key registryKey, ttl uint32, accessedAt *time.Time) {
	groupKey := fmt.Sprintf("%s|%s", key.Value, key.Type)

	result, err, _ := f.group.Do(groupKey, func() (interface{}, error) {
		return f.resolve(ctx, key)
	})

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		if _, exists := f.registry[key]; exists {
			f.log.Warnf("dns flattening in error on value %s type %s, keeping old cache: %v", key.Value, key.Type, err)
			return
		}
		f.log.Warnf("dns flattening failed on value %s type %s with no prior cache: %v", key.Value, key.Type, err)
		return
	}

	values, _ := result.([]model.RecordValue)
	now := time.Now()
	accessed := now
	if accessedAt != nil {
		accessed = *accessedAt
	}

	f.registry[key] = &entry{
		Values:      values,
		TTL:         ttl,
		RefreshedAt: now,
		AccessedAt:  accessed,
	}
}

// RunBootstrap drains the bootstrap queue once. Intended to be driven by
// supervise.Loop at BootstrapTick.
func (f *Flattener) RunBootstrap(ctx context.Context) {
	f.bootstrapMu.Lock()
	orders := make([]bootstrapOrder, 0, len(f.bootstrap))
	for k, ttl := range f.bootstrap {
		orders = append(orders, bootstrapOrder{Key: k, TTL: ttl})
	}
	f.bootstrapMu.Unlock()

	if len(orders) == 0 {
		return
	}

	for _, order := range orders {
		f.flatten(ctx, order.Key, order.TTL, nil)

		f.bootstrapMu.Lock()
		delete(f.bootstrap, order.Key)
		f.bootstrapMu.Unlock()
	}
	f.log.Debugf("bootstrapped dns flattened records (count: %d)", len(orders))
}

// RunMaintain performs one expire-then-refresh pass over the registry.
// Intended to be driven by supervise.Loop at MaintainTick.
func (f *Flattener) RunMaintain(ctx context.Context) {
	expired := f.expire()
	if expired > 0 {
		f.log.Debugf("flushed expired dns flattened records (count: %d)", expired)
	}

	refreshed := f.refresh(ctx)
	if refreshed > 0 {
		f.log.Debugf("refreshed dns flattened records (count: %d)", refreshed)
	}
}

func (f *Flattener) expire() int {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	expired := 0
	for key, e := range f.registry {
		limit := time.Duration(e.TTL) * MaintainExpireTTLRatio * time.Second
		if now.Sub(e.AccessedAt) >= limit {
			delete(f.registry, key)
			expired++
		}
	}
	return expired
}

func (f *Flattener) refresh(ctx context.Context) int {
	now := time.Now()

	type candidate struct {
		key        registryKey
		ttl        uint32
		accessedAt time.Time
	}
	var candidates []candidate

	f.mu.RLock()
	for key, e := range f.registry {
		if now.Sub(e.RefreshedAt) >= time.Duration(e.TTL)*time.Second {
			candidates = append(candidates, candidate{key: key, ttl: e.TTL, accessedAt: e.AccessedAt})
		}
	}
	f.mu.RUnlock()

	for _, c := range candidates {
		accessed := c.accessedAt
		f.flatten(ctx, c.key, c.ttl, &accessed)
	}
	return len(candidates)
}
