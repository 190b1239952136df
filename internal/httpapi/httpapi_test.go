package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authdns/internal/logging"
	"authdns/internal/metrics"
	"authdns/internal/model"
)

type fakeStore struct {
	records map[string]*model.StoreRecord
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[string]*model.StoreRecord)} }

func (f *fakeStore) key(zone model.ZoneName, name model.RecordName, kind model.RecordType) string {
	return zone.String() + "|" + string(name) + "|" + string(kind)
}

func (f *fakeStore) Get(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) (*model.StoreRecord, error) {
	r, ok := f.records[f.key(zone, name, kind)]
	if !ok {
		return nil, errNotFound
	}
	return r, nil
}

func (f *fakeStore) Set(ctx context.Context, zone model.ZoneName, name model.RecordName, record *model.StoreRecord) error {
	f.records[f.key(zone, name, record.Kind)] = record
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) error {
	delete(f.records, f.key(zone, name, kind))
	return nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

// fakeMetrics is a MetricsAggregator stub returning a canned result for
// any zone in known, and (nil, false) otherwise.
type fakeMetrics struct {
	known map[model.ZoneName]map[string]uint32
}

func (f *fakeMetrics) Aggregate(zone model.ZoneName, dim metrics.Dimension, span metrics.Span) (map[string]uint32, bool) {
	data, ok := f.known[zone]
	return data, ok
}

func basicAuth(password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:"+password))
}

func testServer() (*Server, *fakeStore) {
	st := newFakeStore()
	ms := &fakeMetrics{known: map[model.ZoneName]map[string]uint32{
		model.NewZoneName("example.com"): {"A": 5, "AAAA": 2},
	}}
	return New(st, ms, "s3cret", logging.New("test", logging.LevelError)), st
}

func TestGetWithoutAuthUnauthorized(t *testing.T) {
	s, _ := testServer()
	req := httptest.NewRequest(http.MethodGet, "/zone/example.com/record/www.@/A", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetWrongPasswordUnauthorized(t *testing.T) {
	s, _ := testServer()
	req := httptest.NewRequest(http.MethodGet, "/zone/example.com/record/www.@/A", nil)
	req.Header.Set("Authorization", basicAuth("wrong"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetMissingRecordNotFound(t *testing.T) {
	s, _ := testServer()
	req := httptest.NewRequest(http.MethodGet, "/zone/example.com/record/www.@/A", nil)
	req.Header.Set("Authorization", basicAuth("s3cret"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s, _ := testServer()

	body := bytes.NewBufferString(`{"values": ["192.0.2.1"], "ttl": 120}`)
	putReq := httptest.NewRequest(http.MethodPut, "/zone/example.com/record/www.@/A", body)
	putReq.Header.Set("Authorization", basicAuth("s3cret"))
	putReq.Header.Set("Content-Type", "application/json")
	putW := httptest.NewRecorder()
	s.mux.ServeHTTP(putW, putReq)
	if putW.Code != http.StatusOK {
		t.Fatalf("expected 200 on PUT, got %d: %s", putW.Code, putW.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/zone/example.com/record/www.@/A", nil)
	getReq.Header.Set("Authorization", basicAuth("s3cret"))
	getW := httptest.NewRecorder()
	s.mux.ServeHTTP(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("expected 200 on GET, got %d", getW.Code)
	}
	if !bytes.Contains(getW.Body.Bytes(), []byte("192.0.2.1")) {
		t.Fatalf("expected value in response body, got %s", getW.Body.String())
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s, st := testServer()
	st.records["example.com|www.@|A"] = &model.StoreRecord{Kind: model.TypeA, Values: []model.RecordValue{"192.0.2.1"}}

	req := httptest.NewRequest(http.MethodDelete, "/zone/example.com/record/www.@/A", nil)
	req.Header.Set("Authorization", basicAuth("s3cret"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := st.records["example.com|www.@|A"]; ok {
		t.Fatal("expected record to be removed")
	}
}

func TestPutThenGetRoundTripsFlattenBlackholeRescue(t *testing.T) {
	s, _ := testServer()

	body := bytes.NewBufferString(`{
		"values": ["target.example.net"],
		"flatten": true,
		"blackhole": ["RU", "CN"],
		"rescue": ["198.51.100.9"]
	}`)
	putReq := httptest.NewRequest(http.MethodPut, "/zone/example.com/record/api.@/CNAME", body)
	putReq.Header.Set("Authorization", basicAuth("s3cret"))
	putReq.Header.Set("Content-Type", "application/json")
	putW := httptest.NewRecorder()
	s.mux.ServeHTTP(putW, putReq)
	if putW.Code != http.StatusOK {
		t.Fatalf("expected 200 on PUT, got %d: %s", putW.Code, putW.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/zone/example.com/record/api.@/CNAME", nil)
	getReq.Header.Set("Authorization", basicAuth("s3cret"))
	getW := httptest.NewRecorder()
	s.mux.ServeHTTP(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("expected 200 on GET, got %d", getW.Code)
	}

	body2 := getW.Body.String()
	for _, want := range []string{`"flatten":true`, `"RU"`, `"CN"`, `"198.51.100.9"`} {
		if !strings.Contains(body2, want) {
			t.Errorf("expected response to contain %q, got %s", want, body2)
		}
	}
}

func TestMetricsEndpointReturnsAggregate(t *testing.T) {
	s, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/zone/example.com/metrics/5m/query/types", nil)
	req.Header.Set("Authorization", basicAuth("s3cret"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"A":5`) {
		t.Errorf("expected aggregate data in body, got %s", w.Body.String())
	}
}

func TestMetricsEndpointUnknownZoneNotFound(t *testing.T) {
	s, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/zone/unknown.com/metrics/1m/answer/codes", nil)
	req.Header.Set("Authorization", basicAuth("s3cret"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpointBadSpanRejected(t *testing.T) {
	s, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/zone/example.com/metrics/2m/query/origins", nil)
	req.Header.Set("Authorization", basicAuth("s3cret"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
