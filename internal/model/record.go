package model

import (
	"regexp"
	"strings"
)

// RecordType is the closed set of record kinds the store façade serves.
// SOA and NS are never stored here — they live only in the authority
// table.
type RecordType string

const (
	TypeA     RecordType = "A"
	TypeAAAA  RecordType = "AAAA"
	TypeCNAME RecordType = "CNAME"
	TypeMX    RecordType = "MX"
	TypeTXT   RecordType = "TXT"
	TypeCAA   RecordType = "CAA"
	TypePTR   RecordType = "PTR"
)

// Types lists every RecordType in a stable order, used by the existence
// probe (§4.7 step 7) to exhaust the closed set.
var Types = []RecordType{TypeA, TypeAAAA, TypeCNAME, TypeMX, TypeTXT, TypeCAA, TypePTR}

func (t RecordType) Valid() bool {
	switch t {
	case TypeA, TypeAAAA, TypeCNAME, TypeMX, TypeTXT, TypeCAA, TypePTR:
		return true
	default:
		return false
	}
}

// recordNameRegex matches the internal zone-relative record name grammar:
// an optional leading "*." wildcard label, an optional further label
// chain, and the mandatory trailing "@" apex marker. Labels may not
// contain '\', '/', ':', '@', '&' or '*'.
var recordNameRegex = regexp.MustCompile(`^(\*\.)?(([^\\/:@&*]+)\.)?@$`)

// RecordName is a zone-relative selector in the internal "[*.][label.]*@"
// form. Only exact names (of any label depth) and one-label wildcards
// are representable; no form matches arbitrary deeper subdomains.
type RecordName string

// NewRecordName lowercases raw and validates it against the internal
// grammar.
func NewRecordName(raw string) (RecordName, bool) {
	lower := strings.ToLower(raw)
	if !recordNameRegex.MatchString(lower) {
		return "", false
	}
	return RecordName(lower), true
}

// FromFQDN converts a fully-qualified question name plus its owning zone
// into the internal RecordName form, stripping the zone suffix and
// appending "@". Returns false if name is not within zone.
func FromFQDN(zone ZoneName, fqdn string) (RecordName, bool) {
	name := strings.ToLower(strings.TrimSuffix(fqdn, "."))
	zoneStr := zone.String()

	if name == zoneStr {
		return RecordName("@"), true
	}

	suffix := "." + zoneStr
	if !strings.HasSuffix(name, suffix) {
		return "", false
	}

	relative := strings.TrimSuffix(name, suffix)
	if relative == "" {
		return "", false
	}

	candidate := relative + ".@"
	if rn, ok := NewRecordName(candidate); ok {
		return rn, true
	}
	return "", false
}

// Wildcard replaces the leftmost label of an exact RecordName with "*",
// returning false if rn is already "@" (the apex has no leftward label to
// replace) or already a wildcard.
func (rn RecordName) Wildcard() (RecordName, bool) {
	s := string(rn)
	if s == "@" || strings.HasPrefix(s, "*.") {
		return "", false
	}

	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return "", false
	}

	candidate := "*." + parts[1]
	if candidate == s {
		return "", false
	}

	return RecordName(candidate), true
}

func (rn RecordName) IsWildcard() bool {
	return strings.HasPrefix(string(rn), "*.")
}

// DataTXTChunkMaximum is the maximum byte length of a single TXT
// character-string, per RFC 1035.
const DataTXTChunkMaximum = 255

// RecordValue is an opaque string whose grammar depends on the owning
// record's RecordType (e.g. an IP literal for A/AAAA, "<pref> <exchange>"
// for MX).
type RecordValue string

// RecordRegions maps each of the 16 closed region codes to an optional
// override value list; absence of a key means "use primary values for
// that region".
type RecordRegions map[string][]RecordValue

// StoreRecord is the unit read/written through the store façade, keyed
// externally by (ZoneName, RecordName, RecordType).
type StoreRecord struct {
	Name      RecordName
	Kind      RecordType
	Values    []RecordValue
	TTL       *uint32
	Flatten   bool
	Blackhole map[string]struct{}
	Regions   RecordRegions
	Rescue    []RecordValue
}

// Valid reports whether the record satisfies the store's invariants: a
// non-empty Values list (an empty persisted list is corrupted data).
func (r *StoreRecord) Valid() bool {
	return len(r.Values) > 0
}
