package poolmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relaymesh/connpool/pool"
)

func TestSamplePoolSetsGauges(t *testing.T) {
	c := NewCollector()
	c.SamplePool("ethereum", pool.Stats{
		Name:               "mainnet",
		TotalConnections:   4,
		ActiveConnections:  1,
		IdleConnections:    3,
		CircuitBreakerOpen: true,
		Endpoints: []pool.EndpointHealth{
			{URL: "https://node-a", Healthy: true, Latency: 50 * time.Millisecond},
		},
	})

	if got := testutil.ToFloat64(c.clientsTotal.WithLabelValues("mainnet", "ethereum", "")); got != 4 {
		t.Fatalf("clientsTotal = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.endpointHealthy.WithLabelValues("mainnet", "https://node-a")); got != 1 {
		t.Fatalf("endpointHealthy = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.breakerOpen.WithLabelValues("mainnet", "")); got != 1 {
		t.Fatalf("breakerOpen = %v, want 1", got)
	}
}

func TestTrackRecordsSuccessAndFailure(t *testing.T) {
	c := NewCollector()

	_ = c.Track(context.Background(), "mainnet", func(context.Context) error { return nil })
	_ = c.Track(context.Background(), "mainnet", func(context.Context) error { return errors.New("boom") })

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("mainnet", "success")); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("mainnet", "failure")); got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}
}

func TestBridgeTranslatesEvents(t *testing.T) {
	c := NewCollector()
	events := make(chan pool.Event, 4)
	events <- pool.Event{Type: pool.EventConnectionCreated, Pool: "mainnet", Endpoint: "https://node-a"}
	events <- pool.Event{Type: pool.EventCircuitBreaker, Pool: "mainnet", Endpoint: "https://node-a", Data: map[string]any{"action": "opened"}}
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Bridge(ctx, events)

	if got := testutil.ToFloat64(c.clientsCreated.WithLabelValues("mainnet", "https://node-a")); got != 1 {
		t.Fatalf("clientsCreated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.breakerTripsTotal.WithLabelValues("mainnet", "https://node-a")); got != 1 {
		t.Fatalf("breakerTripsTotal = %v, want 1", got)
	}
}
