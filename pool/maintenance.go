package pool

import (
	"context"
	"time"
)

// maintain runs the background maintenance task spec.md §4.5
// describes: every MaintenanceFrequency, close idle connections past
// maxConnectionIdleTime/maxConnectionLifeTime and open new connections
// one at a time until total >= minPoolSize.
func (p *Pool) maintain() {
	defer close(p.maintenanceDone)

	ticker := time.NewTicker(p.opts.MaintenanceFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopMaintenance:
			return
		case <-ticker.C:
			p.runMaintenance()
		}
	}
}

func (p *Pool) runMaintenance() {
	p.pruneExpired()
	p.topUpToMinimum()
}

func (p *Pool) pruneExpired() {
	p.mu.Lock()
	var toClose []*item
	for el := p.available.Back(); el != nil; {
		prev := el.Prev()
		it := el.Value.(*item)
		if p.expired(it) {
			p.available.Remove(el)
			p.total--
			toClose = append(toClose, it)
		}
		el = prev
	}
	p.mu.Unlock()

	for _, it := range toClose {
		it.conn.Close()
	}
}

func (p *Pool) topUpToMinimum() {
	for {
		p.mu.Lock()
		if p.closed || p.total >= p.opts.MinPoolSize {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		conn, err := p.dial(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}

		p.mu.Lock()
		if p.closed {
			p.total--
			p.mu.Unlock()
			conn.Close()
			return
		}
		p.available.PushBack(&item{conn: conn, idledAt: time.Now()})
		p.mu.Unlock()
		p.cond.Signal()
	}
}
