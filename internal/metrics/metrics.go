// Package metrics implements the per-zone sliding-window query telemetry
// read back through the HTTP control plane: three dimensions (query type,
// query origin country, answer code) each tracked as a 16-slot one-minute
// ring per zone, shifted in lockstep on a 60-second tick. This mirrors
// dns/metrics.rs's MetricsStore/DNSMetricsTick exactly; it is distinct
// from internal/obs, which carries ambient Prometheus/gopsutil process
// metrics.
package metrics

import (
	"strings"
	"sync"

	"authdns/internal/authority"
	"authdns/internal/model"
)

// ringSize is the number of one-minute slots retained per dimension,
// the current minute plus a 15-minute backlog (§4.5).
const ringSize = 16

// Span is an aggregation window expressed in ring slots.
type Span string

const (
	Span1m  Span = "1m"
	Span5m  Span = "5m"
	Span15m Span = "15m"
)

func (s Span) minutes() int {
	switch s {
	case Span1m:
		return 1
	case Span5m:
		return 5
	case Span15m:
		return 15
	default:
		return 0
	}
}

// Dimension selects which of the three per-zone rings to read or write.
type Dimension string

const (
	DimensionQueryType   Dimension = "query_type"
	DimensionQueryOrigin Dimension = "query_origin"
	DimensionAnswerCode  Dimension = "answer_code"
)

// CodeName is the full DNS response-code taxonomy, carried here even
// though this pipeline only ever produces a subset of them (dns/code.rs).
type CodeName string

const (
	CodeNoError  CodeName = "NOERROR"
	CodeFormErr  CodeName = "FORMERR"
	CodeServFail CodeName = "SERVFAIL"
	CodeNXDomain CodeName = "NXDOMAIN"
	CodeNotImp   CodeName = "NOTIMP"
	CodeRefused  CodeName = "REFUSED"
	CodeYXDomain CodeName = "YXDOMAIN"
	CodeYXRRSet  CodeName = "YXRRSET"
	CodeNXRRSet  CodeName = "NXRRSET"
	CodeNotAuth  CodeName = "NOTAUTH"
	CodeNotZone  CodeName = "NOTZONE"
)

// zoneStore holds the three dimension rings for a single zone. Each slot
// is a map so that an unbounded label set (query origin country codes)
// doesn't require pre-sizing.
type zoneStore struct {
	queryType   [ringSize]map[model.RecordType]uint32
	queryOrigin [ringSize]map[string]uint32
	answerCode  [ringSize]map[CodeName]uint32
}

func newZoneStore() *zoneStore {
	z := &zoneStore{}
	for i := 0; i < ringSize; i++ {
		z.queryType[i] = make(map[model.RecordType]uint32)
		z.queryOrigin[i] = make(map[string]uint32)
		z.answerCode[i] = make(map[CodeName]uint32)
	}
	return z
}

// Store is the process-wide sliding-window metrics aggregator. One Store
// is created at startup and shared by the pipeline (writers) and the HTTP
// control plane (readers).
type Store struct {
	authority *authority.Table

	mu    sync.RWMutex
	zones map[model.ZoneName]*zoneStore
}

// New builds a Store bound to authTable, used to reject Aggregate calls
// against zones this server does not serve.
func New(authTable *authority.Table) *Store {
	return &Store{
		authority: authTable,
		zones:     make(map[model.ZoneName]*zoneStore),
	}
}

func (s *Store) zoneFor(zone model.ZoneName) *zoneStore {
	s.mu.RLock()
	z, ok := s.zones[zone]
	s.mu.RUnlock()
	if ok {
		return z
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if z, ok := s.zones[zone]; ok {
		return z
	}
	z = newZoneStore()
	s.zones[zone] = z
	return z
}

// StackQueryType increments the current minute's slot for qtype in zone.
func (s *Store) StackQueryType(zone model.ZoneName, qtype model.RecordType) {
	z := s.zoneFor(zone)
	s.mu.Lock()
	z.queryType[0][qtype]++
	s.mu.Unlock()
}

// StackQueryOrigin increments the current minute's slot for the querying
// country's ISO code (empty string means "unknown").
func (s *Store) StackQueryOrigin(zone model.ZoneName, isoCountry string) {
	z := s.zoneFor(zone)
	s.mu.Lock()
	z.queryOrigin[0][isoCountry]++
	s.mu.Unlock()
}

// StackAnswerCode increments the current minute's slot for code in zone.
func (s *Store) StackAnswerCode(zone model.ZoneName, code CodeName) {
	z := s.zoneFor(zone)
	s.mu.Lock()
	z.answerCode[0][code]++
	s.mu.Unlock()
}

// Tick shifts every zone's three rings by one minute: slot i takes slot
// i-1's contents (from the top down, so no slot is overwritten before it
// is read), and slot 0 is cleared for the new minute. Called once every
// 60 seconds by the owning supervise loop.
func (s *Store) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, z := range s.zones {
		for i := ringSize - 1; i > 0; i-- {
			z.queryType[i] = z.queryType[i-1]
			z.queryOrigin[i] = z.queryOrigin[i-1]
			z.answerCode[i] = z.answerCode[i-1]
		}
		z.queryType[0] = make(map[model.RecordType]uint32)
		z.queryOrigin[0] = make(map[string]uint32)
		z.answerCode[0] = make(map[CodeName]uint32)
	}
}

// Aggregate sums the first span.minutes() slots of the named dimension
// for zone, keyed by label. Returns false if zone is not a configured
// authority zone.
func (s *Store) Aggregate(zone model.ZoneName, dim Dimension, span Span) (map[string]uint32, bool) {
	if !s.authority.ZoneExists(zone) {
		return nil, false
	}

	n := span.minutes()
	if n <= 0 || n > ringSize {
		n = ringSize
	}

	s.mu.RLock()
	z, ok := s.zones[zone]
	s.mu.RUnlock()
	if !ok {
		return map[string]uint32{}, true
	}

	out := make(map[string]uint32)
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch dim {
	case DimensionQueryType:
		for i := 0; i < n; i++ {
			for k, v := range z.queryType[i] {
				out[string(k)] += v
			}
		}
	case DimensionQueryOrigin:
		for i := 0; i < n; i++ {
			for k, v := range z.queryOrigin[i] {
				label := k
				if label == "" {
					label = "other"
				}
				out[label] += v
			}
		}
	case DimensionAnswerCode:
		for i := 0; i < n; i++ {
			for k, v := range z.answerCode[i] {
				out[string(k)] += v
			}
		}
	default:
		return nil, false
	}

	return out, true
}

// CodeFromRcodeString normalizes an rcode string (as produced by
// miekg/dns's dns.RcodeToString map) into the closed CodeName taxonomy.
func CodeFromRcodeString(rcode string) CodeName {
	switch strings.ToUpper(rcode) {
	case "FORMERR":
		return CodeFormErr
	case "SERVFAIL":
		return CodeServFail
	case "NXDOMAIN":
		return CodeNXDomain
	case "NOTIMP":
		return CodeNotImp
	case "REFUSED":
		return CodeRefused
	case "YXDOMAIN":
		return CodeYXDomain
	case "YXRRSET":
		return CodeYXRRSet
	case "NXRRSET":
		return CodeNXRRSet
	case "NOTAUTH":
		return CodeNotAuth
	case "NOTZONE":
		return CodeNotZone
	default:
		return CodeNoError
	}
}
