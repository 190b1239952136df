package pipeline

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"

	"authdns/internal/authority"
	"authdns/internal/health"
	"authdns/internal/metrics"
	"authdns/internal/model"
	"authdns/internal/store"
)

func uint32p(v uint32) *uint32 { return &v }

func testEntry() *authority.Table {
	return authority.New(map[model.ZoneName]authority.SOAParams{
		model.NewZoneName("example.com"): {
			Master: "ns1.example.com", Responsible: "hostmaster.example.com",
			Serial: 1, Refresh: 3600, Retry: 600, Expire: 86400, MinimumTTL: 300,
		},
	}, []string{"ns1.example.com", "ns2.example.com"}, 300)
}

// fakeStore is an in-memory RecordStore keyed by (zone, name, kind).
type fakeStore struct {
	records map[string]*model.StoreRecord
	err     error
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[string]*model.StoreRecord)} }

func (f *fakeStore) key(zone model.ZoneName, name model.RecordName, kind model.RecordType) string {
	return zone.String() + "|" + string(name) + "|" + string(kind)
}

func (f *fakeStore) put(zone model.ZoneName, name model.RecordName, kind model.RecordType, r *model.StoreRecord) {
	f.records[f.key(zone, name, kind)] = r
}

func (f *fakeStore) Get(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) (*model.StoreRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[f.key(zone, name, kind)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

type fakeHealth struct {
	dead map[model.RecordValue]bool
}

func (h *fakeHealth) Status(zone model.ZoneName, kind model.RecordType, name model.RecordName, value model.RecordValue) health.Status {
	if h != nil && h.dead[value] {
		return health.Dead
	}
	return health.Healthy
}

type fakeFlatten struct {
	results map[model.RecordValue][]model.RecordValue
}

func (fl *fakeFlatten) Pass(value model.RecordValue, outerType model.RecordType, ttl uint32) ([]model.RecordValue, error) {
	if fl == nil {
		return nil, nil
	}
	v, ok := fl.results[value]
	if !ok {
		return nil, errNoFlatten
	}
	return v, nil
}

var errNoFlatten = &stringErr{"no flatten entry"}

type stringErr struct{ s string }

func (e *stringErr) Error() string { return e.s }

func newTestPipeline(st RecordStore, h HealthStatus, fl Flattener) *Pipeline {
	return &Pipeline{
		authority: testEntry(),
		store:     st,
		geo:       nil,
		health:    h,
		flatten:   fl,
		metrics:   noopMetrics{},
	}
}

func TestHandleExactMatchReturnsAnswer(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "www.@", model.TypeA, &model.StoreRecord{
		Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.1"}, TTL: uint32p(60),
	})
	p := newTestPipeline(st, nil, nil)

	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess {
		t.Fatalf("expected NOERROR, got %d", resp.Rcode)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(resp.Answer))
	}
	a, ok := resp.Answer[0].(*dns.A)
	if !ok || a.A.String() != "192.0.2.1" {
		t.Fatalf("unexpected answer: %v", resp.Answer[0])
	}
}

func TestHandleRefusedOutsideAuthority(t *testing.T) {
	p := newTestPipeline(newFakeStore(), nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("www.other.org.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeRefused {
		t.Fatalf("expected REFUSED, got %d", resp.Rcode)
	}
}

func TestHandleNXDomainWhenNameDoesNotExist(t *testing.T) {
	p := newTestPipeline(newFakeStore(), nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("ghost.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeNameError {
		t.Fatalf("expected NXDOMAIN, got %d", resp.Rcode)
	}
	if len(resp.Ns) != 1 {
		t.Fatalf("expected SOA in authority section, got %d", len(resp.Ns))
	}
}

func TestHandleNoErrorEmptyWhenOtherTypeExists(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "www.@", model.TypeTXT, &model.StoreRecord{
		Kind: model.TypeTXT, Values: []model.RecordValue{"hello"}, TTL: uint32p(60),
	})
	p := newTestPipeline(st, nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess {
		t.Fatalf("expected NOERROR empty, got %d", resp.Rcode)
	}
	if len(resp.Answer) != 0 {
		t.Fatalf("expected empty answer section, got %d", len(resp.Answer))
	}
}

func TestHandleWildcardFallback(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "*.@", model.TypeA, &model.StoreRecord{
		Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.9"}, TTL: uint32p(60),
	})
	p := newTestPipeline(st, nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("anything.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("expected wildcard match, got rcode=%d answers=%d", resp.Rcode, len(resp.Answer))
	}
}

func TestHandleStoreDisconnectedReturnsServfail(t *testing.T) {
	st := newFakeStore()
	st.err = store.ErrDisconnected
	p := newTestPipeline(st, nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeServerFailure {
		t.Fatalf("expected SERVFAIL, got %d", resp.Rcode)
	}
}

func TestHandleHealthDeadRescueSubstitution(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "www.@", model.TypeA, &model.StoreRecord{
		Kind:   model.TypeA,
		Values: []model.RecordValue{"192.0.2.1"},
		TTL:    uint32p(60),
		Rescue: []model.RecordValue{"192.0.2.250"},
	})
	h := &fakeHealth{dead: map[model.RecordValue]bool{"192.0.2.1": true}}
	p := newTestPipeline(st, h, nil)
	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("expected rescued answer, got rcode=%d answers=%d", resp.Rcode, len(resp.Answer))
	}
	a := resp.Answer[0].(*dns.A)
	if a.A.String() != "192.0.2.250" {
		t.Fatalf("expected rescue value, got %s", a.A.String())
	}
}

func TestHandleCNAMEFlattening(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "www.@", model.TypeCNAME, &model.StoreRecord{
		Kind: model.TypeCNAME, Values: []model.RecordValue{"target.elsewhere.net"}, TTL: uint32p(60), Flatten: true,
	})
	fl := &fakeFlatten{results: map[model.RecordValue][]model.RecordValue{
		"target.elsewhere.net": {"203.0.113.5"},
	}}
	p := newTestPipeline(st, nil, fl)
	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("expected flattened answer, got rcode=%d answers=%d", resp.Rcode, len(resp.Answer))
	}
	a, ok := resp.Answer[0].(*dns.A)
	if !ok || a.A.String() != "203.0.113.5" {
		t.Fatalf("unexpected flattened answer: %v", resp.Answer[0])
	}
}

func TestHandleCNAMEQueryReturnsLiteralTarget(t *testing.T) {
	st := newFakeStore()
	st.put(model.NewZoneName("example.com"), "www.@", model.TypeCNAME, &model.StoreRecord{
		Kind: model.TypeCNAME, Values: []model.RecordValue{"target.elsewhere.net"}, TTL: uint32p(60),
	})
	p := newTestPipeline(st, nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("www.example.com.", dns.TypeCNAME)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("expected literal CNAME answer, got rcode=%d answers=%d", resp.Rcode, len(resp.Answer))
	}
	if _, ok := resp.Answer[0].(*dns.CNAME); !ok {
		t.Fatalf("expected CNAME RR, got %T", resp.Answer[0])
	}
}

func TestHandleApexSOA(t *testing.T) {
	p := newTestPipeline(newFakeStore(), nil, nil)
	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeSOA)

	resp := p.Handle(context.Background(), req)
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("expected apex SOA, got rcode=%d answers=%d", resp.Rcode, len(resp.Answer))
	}
}

func clientIPv4() net.IP { return net.ParseIP("198.51.100.7") }

// noopMetrics satisfies MetricsSink for tests that don't assert on
// aggregated metrics.
type noopMetrics struct{}

func (noopMetrics) StackQueryType(model.ZoneName, model.RecordType)      {}
func (noopMetrics) StackQueryOrigin(model.ZoneName, string)              {}
func (noopMetrics) StackAnswerCode(model.ZoneName, metrics.CodeName)     {}
