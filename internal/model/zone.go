// Package model holds the wire-independent data types shared by the store
// façade, the authority table and the query pipeline: zone names, record
// names, record types and the StoreRecord value itself.
package model

import (
	"strings"
)

// ZoneName is a lowercased FQDN that must belong to the configured zone
// set to be accepted at the control-plane boundary. Equality is
// case-insensitive, enforced by always storing the lowercased form.
type ZoneName string

// NewZoneName lowercases and trims a trailing dot from raw, returning the
// canonical ZoneName.
func NewZoneName(raw string) ZoneName {
	return ZoneName(strings.ToLower(strings.TrimSuffix(raw, ".")))
}

func (z ZoneName) String() string {
	return string(z)
}

// FQDN returns the zone name with a trailing root dot, as required by
// github.com/miekg/dns.
func (z ZoneName) FQDN() string {
	return string(z) + "."
}
