package authority

import (
	"testing"

	"authdns/internal/model"
)

func testTable() *Table {
	zones := map[model.ZoneName]SOAParams{
		model.NewZoneName("example.com"): {
			Master:      "ns1.example.com",
			Responsible: "hostmaster.example.com",
			Serial:      1,
			Refresh:     3600,
			Retry:       900,
			Expire:      604800,
			MinimumTTL:  300,
		},
	}
	return New(zones, []string{"ns1.example.com", "ns2.example.com"}, 3600)
}

func TestLookupExactAndSubdomain(t *testing.T) {
	tbl := testTable()

	if e := tbl.Lookup("example.com."); e == nil {
		t.Error("expected apex match")
	}
	if e := tbl.Lookup("www.example.com."); e == nil {
		t.Error("expected subdomain match")
	}
	if e := tbl.Lookup("deep.sub.example.com."); e == nil {
		t.Error("expected deep subdomain match via longest-suffix walk")
	}
}

func TestLookupNoMatch(t *testing.T) {
	tbl := testTable()
	if e := tbl.Lookup("other.org."); e != nil {
		t.Error("expected no authority for unconfigured zone")
	}
}

func TestZoneExists(t *testing.T) {
	tbl := testTable()
	if !tbl.ZoneExists(model.NewZoneName("example.com")) {
		t.Error("expected example.com to exist")
	}
	if tbl.ZoneExists(model.NewZoneName("other.org")) {
		t.Error("expected other.org to not exist")
	}
}
