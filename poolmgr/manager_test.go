package poolmgr

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

type fakeClient struct{ id int }

type fakeAdapter struct{ nextID int }

func (a *fakeAdapter) CreateClient(ctx context.Context, ep pool.Endpoint) (*fakeClient, error) {
	a.nextID++
	return &fakeClient{id: a.nextID}, nil
}
func (a *fakeAdapter) ProbeClient(ctx context.Context, c *fakeClient) bool { return true }
func (a *fakeAdapter) CloseClient(c *fakeClient)                           {}

func testLogger() rlog.Logger { return rlog.NewWithWriter(io.Discard) }

func newTestPool(name string) *pool.Pool[*fakeClient] {
	cfg := pool.Config{
		Name:                      name,
		Endpoints:                 []pool.Endpoint{{URL: "https://" + name}},
		MaxConnectionsPerEndpoint: 2,
		ConnectTimeout:            time.Second,
		IdleTimeout:               time.Hour,
		HealthCheckInterval:       time.Hour,
		CircuitBreakerThreshold:   3,
		CircuitBreakerTimeout:     time.Second,
	}
	return pool.New[*fakeClient](cfg, &fakeAdapter{}, testLogger())
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	m := NewManager(testLogger(), nil)
	p1 := newTestPool("dup")
	p2 := newTestPool("dup")

	if err := Register(m, "fake", p1); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := Register(m, "fake", p2)
	if !errors.Is(err, pool.ErrDuplicatePool) {
		t.Fatalf("expected ErrDuplicatePool, got %v", err)
	}
}

func TestWithClientAcquiresAndReleases(t *testing.T) {
	m := NewManager(testLogger(), nil)
	p := newTestPool("mainnet")
	if err := Register(m, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer m.StopAll()

	var sawID int
	err := WithClient(context.Background(), m, "mainnet", func(c *fakeClient) error {
		sawID = c.id
		return nil
	})
	if err != nil {
		t.Fatalf("WithClient: %v", err)
	}
	if sawID == 0 {
		t.Fatal("expected WithClient to hand back a real client")
	}

	idle := -1
	for _, ps := range m.Stats().Pools {
		if ps.Name == "mainnet" {
			idle = ps.IdleConnections
		}
	}
	if idle != 1 {
		t.Fatalf("expected client released back to idle, got idleConnections=%d", idle)
	}
}

func TestWithClientUnknownPool(t *testing.T) {
	m := NewManager(testLogger(), nil)
	err := WithClient(context.Background(), m, "missing", func(c *fakeClient) error { return nil })
	if !errors.Is(err, pool.ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
}

func TestRemoveStopsAndUnregisters(t *testing.T) {
	m := NewManager(testLogger(), nil)
	p := newTestPool("removable")
	if err := Register(m, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}

	if err := m.Remove("removable"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	err := WithClient(context.Background(), m, "removable", func(c *fakeClient) error { return nil })
	if !errors.Is(err, pool.ErrUnknownPool) {
		t.Fatalf("expected pool to be gone after Remove, got %v", err)
	}
}

func TestEventsAggregatesAcrossPools(t *testing.T) {
	m := NewManager(testLogger(), nil)
	p := newTestPool("events")
	if err := Register(m, "fake", p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer m.StopAll()

	select {
	case ev := <-m.Events():
		if ev.Type != pool.EventPoolStarted {
			t.Fatalf("expected pool_started event first, got %v", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for aggregated event")
	}
}
