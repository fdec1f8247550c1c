package pool

import "time"

// reapLoop closes clients that have sat idle longer than IdleTimeout
// until Stop is called.
func (p *Pool[T]) reapLoop() {
	defer p.wg.Done()

	interval := p.cfg.reapInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

// reapOnce walks every client; one not in use and idle longer than
// IdleTimeout is closed and removed. In-use clients are never reaped
// regardless of age.
func (p *Pool[T]) reapOnce() {
	now := time.Now()

	type victim struct {
		url    string
		client *PooledClient[T]
	}
	var victims []victim

	p.mu.Lock()
	for url, clients := range p.clients {
		kept := clients[:0]
		for _, c := range clients {
			if !c.InUse && now.Sub(c.LastUsedAt) > p.cfg.IdleTimeout {
				victims = append(victims, victim{url: url, client: c})
				continue
			}
			kept = append(kept, c)
		}
		p.clients[url] = kept
	}
	p.mu.Unlock()

	for _, v := range victims {
		p.adapter.CloseClient(v.client.Client)
		p.publish(EventConnectionDestroyed, v.url, map[string]any{"client_id": v.client.ID})
	}
	if len(victims) > 0 {
		p.log.Debug("reaped idle clients", "count", len(victims))
	}
}
