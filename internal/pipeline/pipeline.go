// Package pipeline implements the authoritative query pipeline: the
// single decision tree that turns one incoming DNS question into one
// response, coordinating the authority table, the record store façade,
// the geo locator, the health checker and the CNAME flattener. Grounded
// on original_source/src/dns/handler.rs's five-function decomposition
// (handle_request / lookup / find_auth_recurse / records_from_store /
// parse_from_records), with dns.Msg construction idiom adapted from the
// teacher's authoritative.go plugin.
package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"net"

	"github.com/miekg/dns"

	"authdns/internal/authority"
	"authdns/internal/health"
	"authdns/internal/logging"
	"authdns/internal/metrics"
	"authdns/internal/model"
	"authdns/internal/region"
	"authdns/internal/store"
)

// RecordStore is the subset of the store façade the pipeline needs.
type RecordStore interface {
	Get(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) (*model.StoreRecord, error)
}

// HealthStatus is the subset of the health checker the pipeline needs.
type HealthStatus interface {
	Status(zone model.ZoneName, kind model.RecordType, name model.RecordName, value model.RecordValue) health.Status
}

// Flattener is the subset of the CNAME flattener the pipeline needs.
type Flattener interface {
	Pass(value model.RecordValue, outerType model.RecordType, ttl uint32) ([]model.RecordValue, error)
}

// GeoLocator is the subset of the geo locator the pipeline needs.
type GeoLocator interface {
	IPToRegion(ip net.IP) (region.Code, bool)
	ISOCountry(ip net.IP) (string, bool)
}

// MetricsSink is the subset of the metrics aggregator the pipeline needs.
type MetricsSink interface {
	StackQueryType(zone model.ZoneName, qtype model.RecordType)
	StackQueryOrigin(zone model.ZoneName, isoCountry string)
	StackAnswerCode(zone model.ZoneName, code metrics.CodeName)
}

// Pipeline ties every subsystem together to answer one question at a
// time. A single Pipeline instance processes questions strictly
// sequentially within one handler invocation; the server
// achieves concurrency by running many such invocations across UDP/TCP
// connections, not by parallelizing within one.
type Pipeline struct {
	authority *authority.Table
	store     RecordStore
	geo       GeoLocator
	health    HealthStatus
	flatten   Flattener
	metrics   MetricsSink
	log       *logging.Logger
}

// New builds a Pipeline over its collaborators.
func New(authTable *authority.Table, st RecordStore, geo GeoLocator, h HealthStatus, fl Flattener, ms MetricsSink, log *logging.Logger) *Pipeline {
	return &Pipeline{authority: authTable, store: st, geo: geo, health: h, flatten: fl, metrics: ms, log: log}
}

// Origin is re-exported from store's perspective at the call site; the
// pipeline itself only needs to know whether to bypass the rate limit
// when calling store.Get, so it threads origin through ctx via whatever
// the caller (the listener) set up — see internal/store.WithOrigin.

// Handle resolves one question into a response message. The originating
// client's address, used for geo/region resolution, is read from ctx.
func (p *Pipeline) Handle(ctx context.Context, req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)

	if req.Opcode != dns.OpcodeQuery || req.Response {
		resp.Rcode = dns.RcodeNotImplemented
		return resp
	}
	if len(req.Question) != 1 {
		resp.Rcode = dns.RcodeFormatError
		return resp
	}

	q := req.Question[0]
	entry := p.authority.Lookup(q.Name)
	if entry == nil {
		resp.Rcode = dns.RcodeRefused
		resp.Authoritative = false
		return resp
	}

	// Local authority search: SOA/NS at the zone apex are served directly
	// from the authority table, never through the store.
	if isApex(q.Name, entry.Zone) {
		if rr := localAnswer(entry, q.Qtype); rr != nil {
			resp.Answer = rr
			resp.Authoritative = true
			p.stackAnswerCode(entry.Zone, metrics.CodeNoError)
			return resp
		}
	}

	clientIP := clientIPFromContext(ctx)
	p.stackQueryOrigin(entry.Zone, clientIP)

	qtype, ok := recordTypeFor(q.Qtype)
	if !ok {
		// Query type outside the store-served closed set (e.g. ANY, SOA
		// off-apex, NS off-apex): treat as a miss against the existence
		// probe so the answer is NXDOMAIN/NOERROR+SOA rather than silently
		// empty with no code decision.
		return p.answerMissOrEmpty(ctx, resp, entry, q, nil)
	}

	p.metrics.StackQueryType(entry.Zone, qtype)

	name, ok := model.FromFQDN(entry.Zone, q.Name)
	if !ok {
		resp.Rcode = dns.RcodeRefused
		return resp
	}

	record, cnameHint, err := p.lookupExactOrWildcard(ctx, entry.Zone, name, qtype)
	if err != nil {
		resp.Rcode = dns.RcodeServerFailure
		return resp
	}

	active := record
	if active == nil {
		active = cnameHint
	}
	if active == nil {
		return p.answerMissOrEmpty(ctx, resp, entry, q, nil)
	}

	ttl := effectiveTTL(active, entry.DefaultTTL)
	rrs := p.parseRecord(entry.Zone, name, q.Name, ttl, active, qtype, clientIP)

	if len(rrs) == 0 {
		return p.answerMissOrEmpty(ctx, resp, entry, q, cnameHint)
	}

	if len(rrs) > 1 {
		rand.Shuffle(len(rrs), func(i, j int) { rrs[i], rrs[j] = rrs[j], rrs[i] })
	}

	resp.Answer = rrs
	resp.Authoritative = true
	resp.RecursionDesired = req.RecursionDesired
	resp.Rcode = dns.RcodeSuccess
	p.stackAnswerCode(entry.Zone, metrics.CodeNoError)
	return resp
}

// lookupExactOrWildcard performs the exact lookup with CNAME-hint
// fallback, then a wildcard retry if the exact lookup yields nothing.
func (p *Pipeline) lookupExactOrWildcard(ctx context.Context, zone model.ZoneName, name model.RecordName, qtype model.RecordType) (*model.StoreRecord, *model.StoreRecord, error) {
	record, hint, err := p.lookupExact(ctx, zone, name, qtype)
	if err != nil {
		return nil, nil, err
	}
	if record != nil || hint != nil {
		return record, hint, nil
	}

	wildcard, ok := name.Wildcard()
	if !ok {
		return nil, nil, nil
	}

	return p.lookupExact(ctx, zone, wildcard, qtype)
}

func (p *Pipeline) lookupExact(ctx context.Context, zone model.ZoneName, name model.RecordName, qtype model.RecordType) (*model.StoreRecord, *model.StoreRecord, error) {
	record, err := p.store.Get(ctx, zone, name, qtype)
	if err != nil {
		if errors.Is(err, store.ErrDisconnected) {
			return nil, nil, err
		}
		record = nil // NotFound, Corrupted, etc. all behave as a miss
	}

	if record != nil || qtype == model.TypeCNAME {
		return record, nil, nil
	}

	hint, err := p.store.Get(ctx, zone, name, model.TypeCNAME)
	if err != nil {
		if errors.Is(err, store.ErrDisconnected) {
			return nil, nil, err
		}
		hint = nil
	}
	return nil, hint, nil
}

// answerMissOrEmpty runs the existence probe and its NXDOMAIN/NOERROR
// decision, attaching the zone SOA either way.
func (p *Pipeline) answerMissOrEmpty(ctx context.Context, resp *dns.Msg, entry *authority.Entry, q dns.Question, cnameHint *model.StoreRecord) *dns.Msg {
	resp.Ns = []dns.RR{entry.SOA}
	resp.Authoritative = true

	if cnameHint != nil {
		// A CNAME hint existed but produced no usable values; the name
		// exists (it has a CNAME), so NOERROR, not NXDOMAIN.
		resp.Rcode = dns.RcodeSuccess
		p.stackAnswerCode(entry.Zone, metrics.CodeNoError)
		return resp
	}

	name, ok := model.FromFQDN(entry.Zone, q.Name)
	if !ok {
		resp.Rcode = dns.RcodeSuccess
		p.stackAnswerCode(entry.Zone, metrics.CodeNoError)
		return resp
	}

	exists := p.nameExists(ctx, entry.Zone, name)
	if exists {
		resp.Rcode = dns.RcodeSuccess
		p.stackAnswerCode(entry.Zone, metrics.CodeNoError)
	} else {
		resp.Rcode = dns.RcodeNameError
		p.stackAnswerCode(entry.Zone, metrics.CodeNXDomain)
	}
	return resp
}

// nameExists exhausts the closed record-type set at (zone, name) to
// decide whether the name is known at all, independent of which type
// was actually queried.
func (p *Pipeline) nameExists(ctx context.Context, zone model.ZoneName, name model.RecordName) bool {
	for _, kind := range model.Types {
		_, err := p.store.Get(ctx, zone, name, kind)
		if err == nil {
			return true
		}
		if errors.Is(err, store.ErrDisconnected) {
			// Inconclusive: assume existence rather than risk a false
			// NXDOMAIN while the backend is unreachable.
			return true
		}
	}
	return false
}

func isApex(qname string, zone model.ZoneName) bool {
	return dns.Fqdn(qname) == zone.FQDN()
}

// localAnswer serves SOA/NS queries at the zone apex directly from the
// authority table, never through the store.
func localAnswer(entry *authority.Entry, qtype uint16) []dns.RR {
	switch qtype {
	case dns.TypeSOA:
		return []dns.RR{entry.SOA}
	case dns.TypeNS:
		rrs := make([]dns.RR, 0, len(entry.NS))
		for _, ns := range entry.NS {
			rrs = append(rrs, ns)
		}
		return rrs
	default:
		return nil
	}
}

func effectiveTTL(r *model.StoreRecord, zoneDefault uint32) uint32 {
	if r.TTL != nil {
		return *r.TTL
	}
	return zoneDefault
}

func (p *Pipeline) stackQueryOrigin(zone model.ZoneName, clientIP net.IP) {
	if clientIP == nil || p.geo == nil {
		p.metrics.StackQueryOrigin(zone, "")
		return
	}
	iso, ok := p.geo.ISOCountry(clientIP)
	if !ok {
		iso = ""
	}
	p.metrics.StackQueryOrigin(zone, iso)
}

func (p *Pipeline) stackAnswerCode(zone model.ZoneName, code metrics.CodeName) {
	p.metrics.StackAnswerCode(zone, code)
}

type clientIPKey struct{}

// WithClientIP attaches the originating client's address to ctx.
func WithClientIP(ctx context.Context, ip net.IP) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFromContext(ctx context.Context) net.IP {
	ip, _ := ctx.Value(clientIPKey{}).(net.IP)
	return ip
}
