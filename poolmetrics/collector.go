package poolmetrics

import (
	"context"
	"time"

	"github.com/relaymesh/connpool/pool"
)

// Bridge drains a pool's event channel and turns each event into the
// matching counter increment, until ctx is done or the channel is
// closed. Run it in its own goroutine per pool, e.g. from
// poolmgr when a pool is registered.
func (c *Collector) Bridge(ctx context.Context, events <-chan pool.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Collector) handleEvent(ev pool.Event) {
	switch ev.Type {
	case pool.EventConnectionCreated:
		c.ClientCreated(ev.Pool, ev.Endpoint)
		if secs, ok := ev.Data["duration_seconds"].(float64); ok {
			c.RecordCreation(ev.Pool, time.Duration(secs*float64(time.Second)))
		}
	case pool.EventConnectionDestroyed:
		c.ClientDestroyed(ev.Pool, ev.Endpoint)
	case pool.EventHealthCheck:
		healthy, _ := ev.Data["healthy"].(bool)
		c.HealthCheck(ev.Pool, ev.Endpoint, healthy)
	case pool.EventCircuitBreaker:
		if action, _ := ev.Data["action"].(string); action == "opened" {
			c.BreakerTrip(ev.Pool, ev.Endpoint)
		}
	case pool.EventError:
		errType, _ := ev.Data["error_type"].(string)
		if errType == "" {
			errType = "unknown"
		}
		c.ErrorSeen(ev.Pool, errType)
	}
}

// SampleLoop periodically calls sample(), which a caller wires to one
// or more pools' GetStats, until ctx is canceled.
func SampleLoop(ctx context.Context, interval time.Duration, sample func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
