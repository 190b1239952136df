package model

import "testing"

func TestFromFQDNApex(t *testing.T) {
	zone := NewZoneName("example.com")
	rn, ok := FromFQDN(zone, "example.com.")
	if !ok {
		t.Fatal("expected apex to resolve")
	}
	if rn != "@" {
		t.Errorf("got %q, want @", rn)
	}
}

func TestFromFQDNSubdomain(t *testing.T) {
	zone := NewZoneName("example.com")
	rn, ok := FromFQDN(zone, "www.example.com.")
	if !ok {
		t.Fatal("expected www.example.com to resolve")
	}
	if rn != "www.@" {
		t.Errorf("got %q, want www.@", rn)
	}
}

func TestFromFQDNOutsideZone(t *testing.T) {
	zone := NewZoneName("example.com")
	if _, ok := FromFQDN(zone, "www.other.org."); ok {
		t.Error("expected name outside zone to be rejected")
	}
}

func TestWildcard(t *testing.T) {
	rn := RecordName("www.@")
	wc, ok := rn.Wildcard()
	if !ok {
		t.Fatal("expected wildcard to be derivable")
	}
	if wc != "*.@" {
		t.Errorf("got %q, want *.@", wc)
	}
}

func TestWildcardApexHasNone(t *testing.T) {
	rn := RecordName("@")
	if _, ok := rn.Wildcard(); ok {
		t.Error("expected apex to have no wildcard")
	}
}

func TestWildcardAlreadyWildcard(t *testing.T) {
	rn := RecordName("*.@")
	if _, ok := rn.Wildcard(); ok {
		t.Error("expected wildcard-of-wildcard to be rejected")
	}
}

func TestNewRecordNameAcceptsLabelChainRejectsMissingApex(t *testing.T) {
	if _, ok := NewRecordName("a.b.c.@"); !ok {
		t.Fatal("multi-label chains are allowed by the grammar")
	}
	if _, ok := NewRecordName("no-apex"); ok {
		t.Error("expected name without apex marker to be rejected")
	}
}

func TestRecordTypesClosedSet(t *testing.T) {
	if len(Types) != 7 {
		t.Fatalf("expected 7 record types, got %d", len(Types))
	}
	for _, rt := range Types {
		if !rt.Valid() {
			t.Errorf("%v should be valid", rt)
		}
	}
	if RecordType("SOA").Valid() {
		t.Error("SOA must not be a store-served type")
	}
}

func TestStoreRecordValid(t *testing.T) {
	r := &StoreRecord{Values: nil}
	if r.Valid() {
		t.Error("empty values must be invalid (corrupted)")
	}
	r.Values = []RecordValue{"192.0.2.1"}
	if !r.Valid() {
		t.Error("non-empty values must be valid")
	}
}
