package poolhttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/poolmgr"
	"github.com/relaymesh/connpool/rlog"
)

type fakeClient struct{}
type fakeAdapter struct{ fail bool }

func (a *fakeAdapter) CreateClient(ctx context.Context, ep pool.Endpoint) (*fakeClient, error) {
	if a.fail {
		return nil, http.ErrServerClosed
	}
	return &fakeClient{}, nil
}
func (a *fakeAdapter) ProbeClient(context.Context, *fakeClient) bool { return true }
func (a *fakeAdapter) CloseClient(*fakeClient)                       {}

func testLogger() rlog.Logger { return rlog.NewWithWriter(io.Discard) }

func newPool(t *testing.T, name string, fail bool) *pool.Pool[*fakeClient] {
	t.Helper()
	cfg := pool.Config{
		Name:                      name,
		Endpoints:                 []pool.Endpoint{{URL: "https://" + name}},
		MaxConnectionsPerEndpoint: 2,
		ConnectTimeout:            time.Second,
		IdleTimeout:               time.Hour,
		HealthCheckInterval:       10 * time.Millisecond,
		CircuitBreakerThreshold:   2,
		CircuitBreakerTimeout:     time.Second,
	}
	return pool.New[*fakeClient](cfg, &fakeAdapter{fail: fail}, testLogger())
}

func TestHealthzReportsOKWhenAllPoolsHealthy(t *testing.T) {
	mgr := poolmgr.NewManager(testLogger(), nil)
	p := newPool(t, "mainnet", false)
	if err := poolmgr.Register(mgr, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer mgr.StopAll()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	Handler(mgr, nil).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["mainnet"] != statusOK {
		t.Fatalf("expected mainnet OK, got %q", body["mainnet"])
	}
}

func TestHealthzReturns503WhenEndpointUnhealthy(t *testing.T) {
	mgr := poolmgr.NewManager(testLogger(), nil)
	p := newPool(t, "degraded", true) // adapter always fails to create/probe
	if err := poolmgr.Register(mgr, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer mgr.StopAll()

	// Wait for at least one health probe cycle to mark the endpoint
	// unhealthy (HealthCheckInterval is 10ms in newPool).
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := p.GetStats()
		if len(stats.Endpoints) > 0 && !stats.Endpoints[0].Healthy {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	Handler(mgr, nil).ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once the endpoint is unhealthy, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthzReturns200WhenOnlySomePoolsAreDegraded(t *testing.T) {
	mgr := poolmgr.NewManager(testLogger(), nil)
	healthy := newPool(t, "healthy", false)
	degraded := newPool(t, "degraded", true) // adapter always fails to create/probe
	if err := poolmgr.Register(mgr, "fake", healthy); err != nil {
		t.Fatalf("Register healthy: %v", err)
	}
	if err := poolmgr.Register(mgr, "fake", degraded); err != nil {
		t.Fatalf("Register degraded: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer mgr.StopAll()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := degraded.GetStats()
		if len(stats.Endpoints) > 0 && !stats.Endpoints[0].Healthy {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	Handler(mgr, nil).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 since at least one pool is healthy, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStatsEndpointReturnsJSON(t *testing.T) {
	mgr := poolmgr.NewManager(testLogger(), nil)
	p := newPool(t, "stats-pool", false)
	if err := poolmgr.Register(mgr, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer mgr.StopAll()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	Handler(mgr, nil).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body poolmgr.ManagerStats
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal stats body: %v", err)
	}
	found := false
	for _, ps := range body.Pools {
		if ps.Name == "stats-pool" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stats-pool in response, got %+v", body)
	}
	if body.TotalPools != 1 {
		t.Fatalf("expected totalPools=1, got %d", body.TotalPools)
	}
}
