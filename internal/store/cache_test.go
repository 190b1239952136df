package store

import (
	"testing"
	"time"

	"authdns/internal/model"
)

func TestLocalCacheSetGet(t *testing.T) {
	c, err := newLocalCache()
	if err != nil {
		t.Fatal(err)
	}

	rec := &model.StoreRecord{Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.1"}}
	c.set("k1", model.NewZoneName("example.com"), model.RecordName("www"), model.TypeA, rec)

	// ristretto's Set is processed asynchronously via a buffer; wait
	// briefly for it to become visible, same caveat the library's own
	// tests document.
	time.Sleep(10 * time.Millisecond)

	entry, ok := c.get("k1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Record.Kind != model.TypeA {
		t.Errorf("got kind %q", entry.Record.Kind)
	}
}

func TestLocalCacheNegativeEntry(t *testing.T) {
	c, err := newLocalCache()
	if err != nil {
		t.Fatal(err)
	}
	c.set("missing", model.NewZoneName("example.com"), model.RecordName("www"), model.TypeA, nil)
	time.Sleep(10 * time.Millisecond)

	entry, ok := c.get("missing")
	if !ok {
		t.Fatal("expected negative cache entry to be present")
	}
	if entry.Record != nil {
		t.Error("expected negative entry to have nil Record")
	}
}

func TestLocalCacheInvalidate(t *testing.T) {
	c, err := newLocalCache()
	if err != nil {
		t.Fatal(err)
	}
	c.set("k1", model.NewZoneName("example.com"), model.RecordName("www"), model.TypeA, &model.StoreRecord{Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.1"}})
	time.Sleep(10 * time.Millisecond)

	c.invalidate("k1")
	if _, ok := c.get("k1"); ok {
		t.Error("expected entry to be gone after invalidate")
	}
}

func TestExpireOlderThan(t *testing.T) {
	c, err := newLocalCache()
	if err != nil {
		t.Fatal(err)
	}
	c.set("old", model.NewZoneName("example.com"), model.RecordName("www"), model.TypeA, &model.StoreRecord{Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.1"}})
	time.Sleep(10 * time.Millisecond)

	n := c.expireOlderThan(time.Now())
	if n != 1 {
		t.Errorf("expected 1 expired entry, got %d", n)
	}
	if _, ok := c.get("old"); ok {
		t.Error("expected entry to be expired")
	}
}
