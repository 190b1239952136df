// Package geo resolves client IPs to one of the 16 closed region codes
// via a MaxMind-format country database, grounded on
// original_source/src/geo/locate.rs's RwLock<Reader> hot-swap and on the
// foxzi-namedot geoip.Provider pattern from the rest of the retrieval
// pack (atomic pointer instead of a manual RWMutex, since Go's
// atomic.Pointer gives the same swap-the-whole-reader semantics without
// hand-rolled locking).
package geo

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/oschwald/maxminddb-golang"

	"authdns/internal/region"
)

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Locator resolves an IP to a region, backing its database reader behind
// an atomically-swappable pointer so RequestRefresh never blocks readers.
type Locator struct {
	databasePath string
	reader       atomic.Pointer[maxminddb.Reader]
}

// Open constructs a Locator, eagerly loading the database at path. It
// mirrors Locator::geo_open's startup-fatal semantics in Rust, but
// returns an error instead of panicking so the caller can decide whether
// a missing geo database should be fatal.
func Open(path string) (*Locator, error) {
	l := &Locator{databasePath: path}
	if err := l.acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Locator) acquire() error {
	r, err := maxminddb.Open(l.databasePath)
	if err != nil {
		return fmt.Errorf("geo: open %s: %w", l.databasePath, err)
	}
	old := l.reader.Swap(r)
	if old != nil {
		old.Close()
	}
	return nil
}

// RequestRefresh re-opens the database file at the configured path,
// hot-swapping the live reader. Existing in-flight lookups continue
// against the previous reader until they return.
func (l *Locator) RequestRefresh() error {
	return l.acquire()
}

// IPToRegion looks up ip's country and maps it to one of the 16 closed
// region codes. Returns false if the IP is not found, has no ISO country
// code, or the ISO code doesn't map to a known region.
func (l *Locator) IPToRegion(ip net.IP) (region.Code, bool) {
	reader := l.reader.Load()
	if reader == nil {
		return "", false
	}

	var rec countryRecord
	if err := reader.Lookup(ip, &rec); err != nil {
		return "", false
	}
	if rec.Country.ISOCode == "" {
		return "", false
	}

	return region.FromCountry(rec.Country.ISOCode)
}

// ISOCountry looks up ip's raw ISO-3166 country code without mapping it
// to a region, used by the metrics aggregator's query-origin dimension.
func (l *Locator) ISOCountry(ip net.IP) (string, bool) {
	reader := l.reader.Load()
	if reader == nil {
		return "", false
	}

	var rec countryRecord
	if err := reader.Lookup(ip, &rec); err != nil || rec.Country.ISOCode == "" {
		return "", false
	}
	return rec.Country.ISOCode, true
}
