package pipeline

import (
	"net"

	"github.com/miekg/dns"

	"authdns/internal/health"
	"authdns/internal/model"
	"authdns/internal/region"
)

// parseRecord turns one retained StoreRecord into zero or more wire RRs
// of outerType (the type the client actually queried). If record.Kind is
// CNAME, record.Flatten is set, and outerType isn't CNAME, this is the
// CNAME-hint path and each retained value is flattened through the
// flattener; otherwise values are encoded directly under record.Kind (a
// CNAME record with Flatten unset is never flattened: it is answered as a
// literal CNAME RR, also when it is the CNAME hint for an A/AAAA/etc
// query).
func (p *Pipeline) parseRecord(zone model.ZoneName, name model.RecordName, qname string, ttl uint32, record *model.StoreRecord, outerType model.RecordType, clientIP net.IP) []dns.RR {
	values := p.selectValues(record, clientIP)
	if values == nil {
		return nil // blackholed
	}

	values = p.filterHealth(zone, record.Kind, name, values, record.Rescue)
	if len(values) == 0 {
		return nil
	}

	if record.Kind == model.TypeCNAME && record.Flatten && outerType != model.TypeCNAME {
		return p.flattenValues(qname, ttl, outerType, values)
	}

	return encodeValues(qname, ttl, record.Kind, values)
}

// selectValues applies location-aware handling: blackhole skip, then
// region-bucket selection against the client's
// resolved region, falling back to the primary value list. Returns nil
// (distinct from an empty-but-non-nil slice) to signal "blackholed,
// drop the whole record".
func (p *Pipeline) selectValues(record *model.StoreRecord, clientIP net.IP) []model.RecordValue {
	locationAware := len(record.Blackhole) > 0 || len(record.Regions) > 0
	if !locationAware || clientIP == nil || p.geo == nil {
		return record.Values
	}

	iso, ok := p.geo.ISOCountry(clientIP)
	if !ok {
		return record.Values
	}

	if _, blocked := record.Blackhole[iso]; blocked {
		return nil
	}

	if len(record.Regions) == 0 {
		return record.Values
	}

	code, ok := region.FromCountry(iso)
	if !ok {
		return record.Values
	}

	if override, ok := record.Regions[string(code)]; ok {
		return override
	}
	return record.Values
}

// filterHealth drops values the health checker considers Dead, falling
// back to the record's rescue list if filtering would otherwise leave
// nothing.
func (p *Pipeline) filterHealth(zone model.ZoneName, kind model.RecordType, name model.RecordName, values []model.RecordValue, rescue []model.RecordValue) []model.RecordValue {
	if p.health == nil {
		return values
	}

	kept := make([]model.RecordValue, 0, len(values))
	for _, v := range values {
		if p.health.Status(zone, kind, name, v) != health.Dead {
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 && len(values) > 0 {
		return rescue
	}
	return kept
}

// flattenValues resolves each CNAME target through the flattener into
// wire values of outerType, deduping the union across targets. A total
// miss returns nil: the raw CNAME target cannot itself satisfy
// outerType, so there is no literal fallback answer available here.
func (p *Pipeline) flattenValues(qname string, ttl uint32, outerType model.RecordType, targets []model.RecordValue) []dns.RR {
	if p.flatten == nil {
		return nil
	}

	seen := make(map[model.RecordValue]struct{})
	var flat []model.RecordValue
	for _, target := range targets {
		resolved, err := p.flatten.Pass(target, outerType, ttl)
		if err != nil {
			continue
		}
		for _, v := range resolved {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			flat = append(flat, v)
		}
	}

	if len(flat) == 0 {
		return nil
	}
	return encodeValues(qname, ttl, outerType, flat)
}

func encodeValues(qname string, ttl uint32, kind model.RecordType, values []model.RecordValue) []dns.RR {
	rrs := make([]dns.RR, 0, len(values))
	for _, v := range values {
		rr, err := encodeValue(qname, ttl, kind, v)
		if err != nil {
			// Malformed stored value: drop and continue rather than fail
			// the whole answer.
			continue
		}
		rrs = append(rrs, rr)
	}
	return rrs
}
