// Package poolhttp is the external HTTP surface: a JSON stats
// endpoint, a Prometheus exposition endpoint, and a liveness/health
// endpoint, following the status-map-per-check shape go-ethereum's
// own health package uses.
package poolhttp

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaymesh/connpool/poolmetrics"
	"github.com/relaymesh/connpool/poolmgr"
)

const (
	statusOK     = "OK"
	statusErrPfx = "ERROR: "
)

// Handler mounts /stats, /metrics and /healthz for the given manager.
// metrics may be nil to omit /metrics.
func Handler(mgr *poolmgr.Manager, metrics *poolmetrics.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", statsHandler(mgr))
	mux.HandleFunc("/healthz", healthzHandler(mgr))
	if metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func statsHandler(mgr *poolmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mgr.Stats())
	}
}

// healthzHandler reports one status string per registered pool: OK if
// the pool has at least one endpoint whose last health record is
// healthy (an open circuit breaker does not by itself make a pool
// ERROR), or an ERROR: reason string otherwise. The overall response is 200 if at
// least one registered pool has a healthy endpoint, 503 if every pool
// is unhealthy (including the no-pools-registered case).
func healthzHandler(mgr *poolmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := mgr.Stats()
		body := make(map[string]string, len(stats.Pools))
		anyHealthy := false

		for _, ps := range stats.Pools {
			healthyEndpoints := 0
			for _, ep := range ps.Endpoints {
				if ep.IsHealthy {
					healthyEndpoints++
				}
			}
			switch {
			case ps.CircuitBreakerOpen && healthyEndpoints == 0:
				body[ps.Name] = statusErrPfx + "circuit breaker open and no healthy endpoints"
			case healthyEndpoints == 0:
				body[ps.Name] = statusErrPfx + "no healthy endpoints"
			default:
				body[ps.Name] = statusOK
				anyHealthy = true
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !anyHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}
