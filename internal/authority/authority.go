// Package authority implements the per-configured-zone in-memory SOA/NS
// table and its longest-suffix lookup. It is built once at startup from
// configuration and never mutated afterward, so it needs no lock once
// construction completes: it only needs to answer "whose zone is this
// name in" and "what are its SOA/NS records". Runtime record CRUD lives
// in internal/store and internal/httpapi; zones themselves are
// configuration-time only.
package authority

import (
	"strings"

	"github.com/miekg/dns"

	"authdns/internal/model"
)

// SOAParams are the fields needed to synthesize a zone's SOA record.
type SOAParams struct {
	Master      string
	Responsible string
	Serial      uint32
	Refresh     uint32
	Retry       uint32
	Expire      uint32
	MinimumTTL  uint32
}

// Entry is the immutable SOA/NS bundle for one configured zone.
type Entry struct {
	Zone        model.ZoneName
	SOA         *dns.SOA
	NS          []*dns.NS
	DefaultTTL  uint32
}

// Table is the longest-suffix-match authority lookup structure. Read-only
// after New returns.
type Table struct {
	byZone map[string]*Entry
}

// New builds the authority table from a set of configured zones. ns is the
// list of nameserver hostnames (FQDNs) served for every zone.
func New(zones map[model.ZoneName]SOAParams, ns []string, defaultTTL uint32) *Table {
	t := &Table{byZone: make(map[string]*Entry, len(zones))}

	for zone, p := range zones {
		fqdn := zone.FQDN()

		soa := &dns.SOA{
			Hdr: dns.RR_Header{
				Name:   fqdn,
				Rrtype: dns.TypeSOA,
				Class:  dns.ClassINET,
				Ttl:    p.MinimumTTL,
			},
			Ns:      dns.Fqdn(p.Master),
			Mbox:    dns.Fqdn(p.Responsible),
			Serial:  p.Serial,
			Refresh: p.Refresh,
			Retry:   p.Retry,
			Expire:  p.Expire,
			Minttl:  p.MinimumTTL,
		}

		nsRecords := make([]*dns.NS, 0, len(ns))
		for _, n := range ns {
			nsRecords = append(nsRecords, &dns.NS{
				Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: defaultTTL},
				Ns:  dns.Fqdn(n),
			})
		}

		t.byZone[strings.ToLower(fqdn)] = &Entry{
			Zone:       zone,
			SOA:        soa,
			NS:         nsRecords,
			DefaultTTL: defaultTTL,
		}
	}

	return t
}

// Lookup performs the longest-suffix match required by §4.1: walk the
// question name label-by-label toward the root, returning the first
// configured zone that matches. Returns nil if no configured zone owns
// this name.
func (t *Table) Lookup(qname string) *Entry {
	name := strings.ToLower(strings.TrimSuffix(qname, "."))

	for {
		if e, ok := t.byZone[name+"."]; ok {
			return e
		}

		idx := strings.IndexByte(name, '.')
		if idx < 0 {
			return nil
		}
		name = name[idx+1:]
	}
}

// ZoneExists reports whether name (a bare zone name, no trailing dot
// required) is one of the configured authoritative zones. Used by the
// metrics aggregator to reject aggregate() calls against unknown zones.
func (t *Table) ZoneExists(name model.ZoneName) bool {
	_, ok := t.byZone[name.FQDN()]
	return ok
}
