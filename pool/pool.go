// Package pool implements spec.md §4.5's bounded per-address
// connection pool: total/available/waiters state guarded by one
// mutex, connection open+authenticate happening outside the lock with
// total pre-incremented, a condition-variable wait queue bounded by
// maxWaitQueueSize, idle/life-time pruning, and a background
// maintenance task.
//
// Grounded on core/connection/pool.go (generation counter for
// invalidation, golang.org/x/sync/semaphore for bounding outstanding
// connections) and yamgo/private/conn/pool.go (LIFO channel-backed
// idle queue, Expired() composition), reshaped around spec.md's
// explicit total/available/waiters/closed state machine and its
// WaitQueueFull/WaitQueueTimeout distinction, which neither teacher
// generation draws.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/merr"
)

// maxConcurrentDials bounds how many connection attempts a single Pool
// runs at once, independent of maxPoolSize: when a pool is cold (just
// invalidated, or topping up to minPoolSize) many Checkout/maintenance
// callers can want to dial in the same instant, and opening dozens of
// sockets at once against one mongod is its own failure mode. Grounded
// on core/connection/pool.go's use of golang.org/x/sync/semaphore to
// bound outstanding connections.
const maxConcurrentDials = 2

// Dialer opens and authenticates a new connection to the pool's
// address. The pool calls this outside its lock, per spec.md §4.5
// step 3.
type Dialer func(ctx context.Context) (*connection.Connection, error)

// Options configures a Pool, per spec.md §3's ClientSettings pool
// fields.
type Options struct {
	Address               address.Address
	MinPoolSize           uint64
	MaxPoolSize           uint64
	MaxWaitQueueSize      uint64
	MaxConnectionIdleTime time.Duration
	MaxConnectionLifeTime time.Duration
	MaintenanceFrequency  time.Duration
	Dial                  Dialer
}

func (o *Options) fillDefaults() {
	if o.MaxPoolSize == 0 {
		o.MaxPoolSize = 100
	}
	if o.MaxWaitQueueSize == 0 {
		o.MaxWaitQueueSize = o.MaxPoolSize * 5
	}
	if o.MaintenanceFrequency == 0 {
		o.MaintenanceFrequency = 60 * time.Second
	}
}

// item is one idle pooled connection plus its idle-since timestamp.
type item struct {
	conn    *connection.Connection
	idledAt time.Time
}

// Pool is a bounded multiset of Connections keyed to one address, per
// spec.md §4.5.
type Pool struct {
	addr address.Address
	opts Options

	mu            sync.Mutex
	cond          *sync.Cond
	available     *list.List // of *item, front = most recently returned (LIFO)
	total         uint64
	waiters       uint64
	closed        bool
	invalidatedAt time.Time

	dialSem *semaphore.Weighted

	stopMaintenance chan struct{}
	maintenanceDone chan struct{}

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// New creates a Pool for addr. The caller should call Close when done
// with the pool.
func New(opts Options) *Pool {
	opts.fillDefaults()
	p := &Pool{
		addr:            opts.Address,
		opts:            opts,
		available:       list.New(),
		dialSem:         semaphore.NewWeighted(maxConcurrentDials),
		stopMaintenance: make(chan struct{}),
		maintenanceDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.maintain()
	return p
}

// Checkout removes and returns a live connection from the pool,
// dialing a new one if under maxPoolSize or waiting for one to free up
// otherwise, per spec.md §4.5's Checkout algorithm. deadline bounds
// how long the caller will wait in the queue.
func (p *Pool) Checkout(ctx context.Context, deadline time.Time) (*connection.Connection, error) {
	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, merr.ErrPoolClosed
		}

		if el := p.available.Front(); el != nil {
			it := p.available.Remove(el).(*item)
			if p.expired(it) {
				p.total--
				p.mu.Unlock()
				it.conn.Close()
				p.mu.Lock()
				continue
			}
			p.mu.Unlock()
			it.conn.MarkUsed()
			logrus.WithField("address", string(p.addr)).Debug("pool: checkout reused idle connection")
			p.publish(Event{Type: EventConnectionCheckedOut, Address: p.addr})
			return it.conn, nil
		}

		if p.total < p.opts.MaxPoolSize {
			p.total++
			p.mu.Unlock()

			conn, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				logrus.WithField("address", string(p.addr)).WithError(err).Warn("pool: checkout dial failed")
				return nil, err
			}
			conn.MarkUsed()
			logrus.WithField("address", string(p.addr)).Debug("pool: checkout opened new connection")
			p.publish(Event{Type: EventConnectionCheckedOut, Address: p.addr})
			return conn, nil
		}

		if p.waiters >= p.opts.MaxWaitQueueSize {
			p.mu.Unlock()
			return nil, merr.ErrWaitQueueFull
		}

		p.waiters++
		timedOut := p.waitUntil(deadline)
		p.waiters--
		if timedOut {
			p.mu.Unlock()
			return nil, merr.ErrWaitQueueTimeout
		}
		// loop and retry
	}
}

// dial opens one new connection, bounding concurrent attempts via
// dialSem so a cold pool doesn't fire maxPoolSize dials at once.
func (p *Pool) dial(ctx context.Context) (*connection.Connection, error) {
	if err := p.dialSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.dialSem.Release(1)
	return p.opts.Dial(ctx)
}

// waitUntil blocks on p.cond until woken or deadline passes, reporting
// whether it timed out. Must be called with p.mu held; re-acquires it
// before returning.
func (p *Pool) waitUntil(deadline time.Time) bool {
	if deadline.IsZero() {
		p.cond.Wait()
		return false
	}

	timer := time.AfterFunc(time.Until(deadline), func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.cond.Wait()
	return time.Now().After(deadline)
}

// Checkin returns conn to the pool, or closes it if it is poisoned,
// the pool is closed, or it has exceeded maxConnectionLifeTime, per
// spec.md §4.5's Checkin algorithm.
func (p *Pool) Checkin(conn *connection.Connection) {
	p.mu.Lock()

	if p.closed || !conn.Alive() || p.lifetimeExceeded(conn) || p.invalidated(conn) {
		p.total--
		p.mu.Unlock()
		conn.Close()
		p.cond.Signal()
		logrus.WithField("address", string(p.addr)).Debug("pool: checkin closed poisoned or expired connection")
		return
	}

	p.available.PushFront(&item{conn: conn, idledAt: time.Now()})
	p.mu.Unlock()
	p.cond.Signal()
	logrus.WithField("address", string(p.addr)).Debug("pool: checkin returned connection to idle set")
	p.publish(Event{Type: EventConnectionCheckedIn, Address: p.addr})
}

// Invalidate closes every idle connection and marks the current
// instant so that any connection dialed at or before it is poisoned on
// its next checkin, per spec.md §4.5's Invalidation and §4.6's "Fatal
// to a Server" rule. In-flight connections (checked out before the
// call) are not touched here; Checkin catches them individually.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	p.invalidatedAt = time.Now()
	idle := p.drainAvailableLocked()
	p.mu.Unlock()

	logrus.WithField("address", string(p.addr)).WithField("closed", len(idle)).Warn("pool: invalidated")
	p.publish(Event{Type: EventPoolInvalidated, Address: p.addr})
	for _, it := range idle {
		it.conn.Close()
	}
}

// invalidated reports whether conn was dialed at or before the pool's
// last Invalidate call, meaning it must be poisoned on checkin rather
// than returned to the idle set. Must be called with p.mu held.
func (p *Pool) invalidated(conn *connection.Connection) bool {
	return !p.invalidatedAt.IsZero() && !conn.CreatedAt().After(p.invalidatedAt)
}

// Close closes every connection this pool knows about and stops its
// maintenance task.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.drainAvailableLocked()
	p.mu.Unlock()
	p.cond.Broadcast()

	close(p.stopMaintenance)
	<-p.maintenanceDone

	for _, it := range idle {
		it.conn.Close()
	}
}

func (p *Pool) drainAvailableLocked() []*item {
	idle := make([]*item, 0, p.available.Len())
	for el := p.available.Front(); el != nil; el = p.available.Front() {
		it := p.available.Remove(el).(*item)
		idle = append(idle, it)
		p.total--
	}
	return idle
}

func (p *Pool) expired(it *item) bool {
	now := time.Now()
	if p.opts.MaxConnectionIdleTime > 0 && now.Sub(it.idledAt) > p.opts.MaxConnectionIdleTime {
		return true
	}
	return p.lifetimeExceeded(it.conn)
}

func (p *Pool) lifetimeExceeded(conn *connection.Connection) bool {
	if p.opts.MaxConnectionLifeTime <= 0 {
		return false
	}
	return time.Since(conn.CreatedAt()) > p.opts.MaxConnectionLifeTime
}

// Stats reports the pool's current total/available/waiters counts,
// for diagnostics.
type Stats struct {
	Total     uint64
	Available uint64
	Waiters   uint64
}

// Stats returns a snapshot of the pool's current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: p.total, Available: uint64(p.available.Len()), Waiters: p.waiters}
}
