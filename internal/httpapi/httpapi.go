// Package httpapi implements the control-plane surface for managing
// records: HEAD/GET/PUT/DELETE against /zone/{zone}/record/{name}/{type}.
// Grounded on original_source/src/http/routes.rs (route shape),
// record_guard.rs (password-only HTTP Basic Auth) and errors.rs
// (categorical JSON error body), built on stdlib net/http +
// encoding/json rather than Rocket/actix-web, which have no idiomatic
// Go equivalent.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"authdns/internal/logging"
	"authdns/internal/metrics"
	"authdns/internal/model"
)

// RecordStore is the subset of the store façade the control plane needs.
type RecordStore interface {
	Get(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) (*model.StoreRecord, error)
	Set(ctx context.Context, zone model.ZoneName, name model.RecordName, record *model.StoreRecord) error
	Remove(ctx context.Context, zone model.ZoneName, name model.RecordName, kind model.RecordType) error
}

// MetricsAggregator is the subset of metrics.Store the control plane
// needs to serve the read-only metrics endpoint.
type MetricsAggregator interface {
	Aggregate(zone model.ZoneName, dim metrics.Dimension, span metrics.Span) (map[string]uint32, bool)
}

// Server is the control-plane HTTP surface.
type Server struct {
	store       RecordStore
	metrics     MetricsAggregator
	recordToken string
	log         *logging.Logger
	mux         *http.ServeMux
}

// New builds a Server. recordToken is the shared password checked against
// every request's HTTP Basic Auth credential (the username is ignored).
func New(st RecordStore, ms MetricsAggregator, recordToken string, log *logging.Logger) *Server {
	s := &Server{store: st, metrics: ms, recordToken: recordToken, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	const pattern = "/zone/{zone}/record/{name}/{type}"
	s.mux.HandleFunc("HEAD "+pattern, s.withAuth(s.headRecord))
	s.mux.HandleFunc("GET "+pattern, s.withAuth(s.getRecord))
	s.mux.HandleFunc("PUT "+pattern, s.withAuth(s.putRecord))
	s.mux.HandleFunc("DELETE "+pattern, s.withAuth(s.deleteRecord))

	const metricsBase = "/zone/{zone}/metrics/{span}/"
	s.mux.HandleFunc("GET "+metricsBase+"query/types", s.withAuth(s.metricsHandler(metrics.DimensionQueryType)))
	s.mux.HandleFunc("GET "+metricsBase+"query/origins", s.withAuth(s.metricsHandler(metrics.DimensionQueryOrigin)))
	s.mux.HandleFunc("GET "+metricsBase+"answer/codes", s.withAuth(s.metricsHandler(metrics.DimensionAnswerCode)))
}

// ListenAndServe starts the control-plane HTTP server on addr, blocking
// until it stops.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Infof("httpapi: listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// recordData is the PUT request/GET response body shape, mirroring
// routes.rs's RecordData/RecordGetResponse.
type recordData struct {
	Type      model.RecordType    `json:"type,omitempty"`
	Name      model.RecordName    `json:"name,omitempty"`
	TTL       *uint32             `json:"ttl,omitempty"`
	Flatten   bool                `json:"flatten,omitempty"`
	Blackhole []string            `json:"blackhole,omitempty"`
	Regions   model.RecordRegions `json:"regions,omitempty"`
	Rescue    []model.RecordValue `json:"rescue,omitempty"`
	Values    []model.RecordValue `json:"values"`
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// authenticate checks HTTP Basic Auth's password field against the
// configured record token; the username is never checked, matching
// record_guard.rs's Authorization contract.
func (s *Server) authenticate(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	const scheme = "Basic "
	if !strings.HasPrefix(header, scheme) {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(scheme):])
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}
	return parts[1] == s.recordToken
}

func pathParams(r *http.Request) (model.ZoneName, model.RecordName, model.RecordType, bool) {
	zone := model.NewZoneName(r.PathValue("zone"))

	name, ok := model.NewRecordName(r.PathValue("name"))
	if !ok {
		return "", "", "", false
	}

	kind := model.RecordType(strings.ToUpper(r.PathValue("type")))
	if !kind.Valid() {
		return "", "", "", false
	}

	return zone, name, kind, true
}

// blackholeSet converts the wire-friendly country-code list into the
// store's set representation.
func blackholeSet(countries []string) map[string]struct{} {
	if len(countries) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		set[c] = struct{}{}
	}
	return set
}

// blackholeList converts the store's blackhole set back into a
// wire-friendly country-code list.
func blackholeList(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	list := make([]string, 0, len(set))
	for c := range set {
		list = append(list, c)
	}
	return list
}

func (s *Server) headRecord(w http.ResponseWriter, r *http.Request) {
	zone, name, kind, ok := pathParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if _, err := s.store.Get(r.Context(), zone, name, kind); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	zone, name, kind, ok := pathParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	record, err := s.store.Get(r.Context(), zone, name, kind)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	writeJSON(w, http.StatusOK, recordData{
		Type:      kind,
		Name:      name,
		TTL:       record.TTL,
		Flatten:   record.Flatten,
		Blackhole: blackholeList(record.Blackhole),
		Regions:   record.Regions,
		Rescue:    record.Rescue,
		Values:    record.Values,
	})
}

func (s *Server) putRecord(w http.ResponseWriter, r *http.Request) {
	zone, name, kind, ok := pathParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeError(w, http.StatusNotAcceptable, "not_acceptable")
		return
	}

	var data recordData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	record := &model.StoreRecord{
		Name:      name,
		Kind:      kind,
		Values:    data.Values,
		TTL:       data.TTL,
		Flatten:   data.Flatten,
		Blackhole: blackholeSet(data.Blackhole),
		Regions:   data.Regions,
		Rescue:    data.Rescue,
	}
	if !record.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if err := s.store.Set(r.Context(), zone, name, record); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	zone, name, kind, ok := pathParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if err := s.store.Remove(r.Context(), zone, name, kind); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// metricsResponse is the metrics-read endpoint's body shape: the
// dimension's label counts summed over the requested span.
type metricsResponse struct {
	Zone model.ZoneName    `json:"zone"`
	Span string            `json:"span"`
	Data map[string]uint32 `json:"data"`
}

var validSpans = map[string]metrics.Span{
	"1m":  metrics.Span1m,
	"5m":  metrics.Span5m,
	"15m": metrics.Span15m,
}

// metricsHandler builds a GET handler for one fixed dimension, reading
// the zone and span from the request path and calling Aggregate.
func (s *Server) metricsHandler(dim metrics.Dimension) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zone := model.NewZoneName(r.PathValue("zone"))

		span, ok := validSpans[r.PathValue("span")]
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request")
			return
		}

		data, ok := s.metrics.Aggregate(zone, dim, span)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		writeJSON(w, http.StatusOK, metricsResponse{Zone: zone, Span: string(span), Data: data})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Error: reason})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

