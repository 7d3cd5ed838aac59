// Package topology implements spec.md §4.6/§4.7: one Server per known
// address (pool + dedicated monitor + last description), folded by a
// cluster state machine into one ClusterDescription snapshot, with
// blocking server selection against that snapshot.
//
// Grounded on core/server_monitor.go (StartServerMonitor's
// dial/heartbeat/sleep loop) and core/cluster_monitor.go
// (StartClusterMonitor's change-channel fan-out and clusterMonitorFSM
// transition table), rewritten around this module's
// connstring/connection/pool/description/selector packages instead of
// the teacher's ServerOptionsFactory/Endpoint/desc.* types, and around
// a mutex + condition variable instead of the teacher's unbounded
// channel of ServerDesc changes.
package topology

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/description"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/pool"
	"github.com/mongodb/mongo-go-driver-core/selector"
)

// Cluster discovers and tracks every server reachable from the seed
// hosts in a ClientSettings, and answers SelectServer requests against
// its current snapshot.
type Cluster struct {
	settings  *connstring.ClientSettings
	dialer    connection.Dialer
	tlsConfig *tls.Config

	mu      sync.Mutex
	cond    *sync.Cond
	fsm     clusterFSM
	servers map[address.Address]*Server
	closed  bool

	subMu       sync.Mutex
	subscribers map[int]chan description.Cluster
	nextSubID   int
	subsClosed  bool
}

// New builds a Cluster from parsed connstring settings and starts
// monitoring every seed host. The caller must call Close when done.
func New(settings *connstring.ClientSettings, opts ...Option) (*Cluster, error) {
	if len(settings.Hosts) == 0 {
		return nil, merr.NewConfigError("connection string has no hosts")
	}

	c := &Cluster{
		settings: settings,
		servers:  make(map[address.Address]*Server),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cond = sync.NewCond(&c.mu)

	if settings.SSLEnabled && c.tlsConfig == nil {
		c.tlsConfig = &tls.Config{}
	}

	c.fsm = clusterFSM{kind: description.UnknownClusterKind}
	if settings.ReplicaSet != "" {
		c.fsm.setName = settings.ReplicaSet
		c.fsm.kind = description.ReplicaSetNoPrimary
	}

	c.mu.Lock()
	for _, h := range settings.Hosts {
		addr := h.Canonicalize()
		c.fsm.addServer(addr)
		c.startMonitoringLocked(addr)
	}
	c.mu.Unlock()

	return c, nil
}

// Option customizes a Cluster at construction time.
type Option func(*Cluster)

// WithDialer overrides the net-level dialer every connection (pool and
// monitor alike) uses, for tests.
func WithDialer(d connection.Dialer) Option {
	return func(c *Cluster) { c.dialer = d }
}

// WithTLSConfig overrides the TLS config derived from sslEnabled=true.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Cluster) { c.tlsConfig = cfg }
}

func (c *Cluster) startMonitoringLocked(addr address.Address) {
	if _, ok := c.servers[addr]; ok {
		return
	}

	s := &Server{addr: addr}
	s.desc.Store(description.Unknown(addr, nil))

	s.pool = pool.New(pool.Options{
		Address:               addr,
		MinPoolSize:           c.settings.MinPoolSize,
		MaxPoolSize:           c.settings.MaxPoolSize,
		MaxWaitQueueSize:      c.settings.MaxWaitQueueSize,
		MaxConnectionIdleTime: c.settings.MaxConnectionIdleTime,
		MaxConnectionLifeTime: c.settings.MaxConnectionLifeTime,
		Dial: func(ctx context.Context) (*connection.Connection, error) {
			return connection.Dial(ctx, c.connectionOptions(addr))
		},
	})

	s.monitor = StartMonitor(MonitorOptions{
		Address:                        addr,
		Dialer:                         c.dialer,
		TLSConfig:                      c.tlsConfig,
		ConnectTimeout:                 c.settings.HeartbeatConnectTimeout,
		SocketTimeout:                  c.settings.HeartbeatSocketTimeout,
		HeartbeatFrequency:             c.settings.HeartbeatFrequency,
		HeartbeatConnectRetryFrequency: c.settings.HeartbeatConnectRetryFrequency,
		SingleSeed:                     len(c.settings.Hosts) == 1,
		OnUpdate: func(desc description.Server) {
			s.desc.Store(desc)
			c.apply(desc)
		},
		InvalidatePool: s.pool.Invalidate,
	})

	c.servers[addr] = s
}

func (c *Cluster) connectionOptions(addr address.Address) connection.Options {
	keepAlive := time.Duration(-1)
	if c.settings.SocketKeepAlive {
		keepAlive = 30 * time.Second
	}
	return connection.Options{
		Address:         addr,
		AppName:         c.settings.AppName,
		ConnectTimeout:  c.settings.ConnectTimeout,
		SocketTimeout:   c.settings.SocketTimeout,
		SocketKeepAlive: keepAlive,
		TLSConfig:       c.tlsConfig,
		Credentials:     c.settings.Credentials,
		Dialer:          c.dialer,
	}
}

// apply folds an updated ServerDescription into the cluster FSM and
// reconciles the tracked server set against the result, per
// core/cluster_monitor.go's apply/diffClusterDesc shape.
func (c *Cluster) apply(desc description.Server) {
	c.mu.Lock()
	newDesc := c.fsm.apply(desc)
	c.reconcileLocked(newDesc)
	c.cond.Broadcast()
	c.mu.Unlock()
	c.publish(newDesc)
}

// Subscribe returns a channel on which every updated ClusterDescription
// is sent, pre-populated with the current snapshot, plus a func that
// unsubscribes and closes the channel. Grounded on
// core/cluster_monitor.go's Subscribe: a buffer-of-one channel that is
// drained and replaced on every publish, so a subscriber only ever
// observes the latest snapshot rather than a queue of stale ones.
func (c *Cluster) Subscribe() (<-chan description.Cluster, func(), error) {
	c.mu.Lock()
	current := c.fsm.snapshot()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, merr.ErrClusterClosed
	}

	ch := make(chan description.Cluster, 1)
	ch <- current

	c.subMu.Lock()
	if c.subsClosed {
		c.subMu.Unlock()
		return nil, nil, merr.ErrClusterClosed
	}
	if c.subscribers == nil {
		c.subscribers = make(map[int]chan description.Cluster)
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe, nil
}

// publish fans desc out to every subscriber, replacing whatever stale
// snapshot is currently buffered in its channel.
func (c *Cluster) publish(desc description.Cluster) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- desc
	}
}

// closeSubscribers closes every subscriber channel and marks the
// cluster unsubscribable, per core/cluster_monitor.go's Stop.
func (c *Cluster) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subsClosed = true
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
}

func (c *Cluster) reconcileLocked(desc description.Cluster) {
	if c.closed {
		return
	}

	known := make(map[address.Address]bool, len(desc.Servers))
	for _, s := range desc.Servers {
		known[s.Addr] = true
		c.startMonitoringLocked(s.Addr)
	}
	for addr, srv := range c.servers {
		if !known[addr] {
			srv.Close()
			delete(c.servers, addr)
		}
	}
}

// Description returns the current ClusterDescription snapshot.
func (c *Cluster) Description() description.Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.snapshot()
}

// SelectServer blocks until a server matching sel is available or ctx
// (or the ClientSettings maxWaitTime, whichever is sooner) expires,
// per spec.md §4.7's Server selection algorithm: snapshot, filter,
// apply the 15ms latency window, choose uniformly among survivors;
// park on change and retry if none qualify.
func (c *Cluster) SelectServer(ctx context.Context, sel selector.Func) (*Server, error) {
	deadline := time.Now().Add(c.settings.MaxWaitTime)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.closed {
			return nil, merr.ErrClusterClosed
		}

		snapshot := c.fsm.snapshot()
		candidates, err := sel(snapshot, snapshot.Servers)
		if err != nil {
			return nil, err
		}
		candidates = selector.Latency(candidates)

		if len(candidates) > 0 {
			chosen, err := selector.Pick(candidates)
			if err != nil {
				return nil, err
			}
			srv, ok := c.servers[chosen.Addr]
			if !ok {
				continue
			}
			return srv, nil
		}

		if err := c.waitForChangeLocked(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

// waitForChangeLocked blocks on c.cond until a description changes, ctx
// is done, or deadline passes. Must be called with c.mu held; it is
// released while waiting and re-acquired before returning.
func (c *Cluster) waitForChangeLocked(ctx context.Context, deadline time.Time) error {
	woken := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(time.Until(deadline)):
		case <-woken:
			return
		}
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	c.cond.Wait()
	close(woken)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !time.Now().Before(deadline) {
		return merr.NewNoServerAvailableError("selector")
	}
	return nil
}

// Close stops every server's monitor and pool.
func (c *Cluster) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	servers := make([]*Server, 0, len(c.servers))
	for _, s := range c.servers {
		servers = append(servers, s)
	}
	c.servers = nil
	c.mu.Unlock()
	c.cond.Broadcast()
	c.closeSubscribers()

	for _, s := range servers {
		s.Close()
	}
}
