package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"authdns/internal/logging"
	"authdns/internal/model"
)

func TestStatusUncheckedForNonProbableType(t *testing.T) {
	c := New(nil, nil, "test-server", logging.New("test", logging.LevelError))
	if got := c.Status(model.NewZoneName("example.com"), model.TypeMX, "www.@", "192.0.2.1"); got != Unchecked {
		t.Errorf("expected Unchecked for MX, got %v", got)
	}
}

func TestStatusHealthyByDefault(t *testing.T) {
	c := New(nil, nil, "test-server", logging.New("test", logging.LevelError))
	if got := c.Status(model.NewZoneName("example.com"), model.TypeA, "www.@", "192.0.2.1"); got != Healthy {
		t.Errorf("expected Healthy by default, got %v", got)
	}
}

func TestApplyResultTransitionsToDeadAndBack(t *testing.T) {
	c := New(nil, nil, "test-server", logging.New("test", logging.LevelError))
	target := Target{Zone: model.NewZoneName("example.com"), Name: "www.@", Kind: model.TypeA}

	_, changed := c.applyResult(target, "192.0.2.1", false)
	if !changed {
		t.Fatal("expected first failure to transition to dead")
	}
	if c.Status(target.Zone, target.Kind, target.Name, "192.0.2.1") != Dead {
		t.Error("expected status Dead after failure")
	}

	_, changed = c.applyResult(target, "192.0.2.1", false)
	if changed {
		t.Error("expected repeated failure to not re-transition")
	}

	_, changed = c.applyResult(target, "192.0.2.1", true)
	if !changed {
		t.Fatal("expected recovery to transition out of dead")
	}
	if c.Status(target.Zone, target.Kind, target.Name, "192.0.2.1") != Healthy {
		t.Error("expected status Healthy after recovery")
	}
}

func TestEvaluateResponseStatusOnly(t *testing.T) {
	target := Target{ExpectedStatuses: []int{200, 204}}
	resp := &http.Response{StatusCode: 204}
	if !evaluateResponse(resp, target) {
		t.Error("expected 204 to satisfy expected statuses")
	}

	resp = &http.Response{StatusCode: 500}
	if evaluateResponse(resp, target) {
		t.Error("expected 500 to fail expected statuses")
	}
}

func TestProbeAgainstLocalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(nil, nil, "test-server", logging.New("test", logging.LevelError))
	target := Target{
		Path:             "/",
		Port:             mustPort(srv.URL),
		Timeout:          3_000_000_000, // 3s in time.Duration units
		MaxAttempts:      1,
		ExpectedStatuses: []int{200},
	}

	ok := c.probe(context.Background(), target, model.RecordValue("127.0.0.1"))
	if !ok {
		t.Error("expected probe against local httptest server to succeed")
	}
}

func mustPort(rawURL string) int {
	// httptest server URLs are http://127.0.0.1:PORT
	for i := len(rawURL) - 1; i >= 0; i-- {
		if rawURL[i] == ':' {
			port := 0
			for _, c := range rawURL[i+1:] {
				if c < '0' || c > '9' {
					break
				}
				port = port*10 + int(c-'0')
			}
			return port
		}
	}
	return 0
}
