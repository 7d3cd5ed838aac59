package topology

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/description"
)

// MonitorOptions configures a Monitor, per spec.md §4.6.
type MonitorOptions struct {
	Address address.Address

	Dialer    connection.Dialer
	TLSConfig *tls.Config

	ConnectTimeout                 time.Duration
	SocketTimeout                  time.Duration
	HeartbeatFrequency             time.Duration
	HeartbeatConnectRetryFrequency time.Duration

	// SingleSeed reports whether the cluster was configured with
	// exactly one seed host, feeding classifyKind's Standalone/RSOther
	// fallback.
	SingleSeed bool

	// OnUpdate is called with every published ServerDescription,
	// including the initial Unknown one.
	OnUpdate func(description.Server)
	// InvalidatePool is called whenever a heartbeat fails, per spec.md
	// §4.6 step 3.
	InvalidatePool func()
}

// Monitor runs the dedicated per-server heartbeat loop described in
// spec.md §4.6: probe, publish, sleep (on a shorter interval after a
// failure), repeat. Grounded on core/server_monitor.go's
// StartServerMonitor/heartbeat shape, rewritten around
// context-deadlined connection.Dial/RunCommand instead of the
// teacher's bespoke ConnectionOptions/transportConnection pair.
type Monitor struct {
	opts MonitorOptions

	conn *connection.Connection

	stop chan struct{}
	done chan struct{}
}

// StartMonitor creates and starts a Monitor for opts.Address.
func StartMonitor(opts MonitorOptions) *Monitor {
	m := &Monitor{
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Monitor) run() {
	defer close(m.done)

	wasUnknown := true
	m.opts.OnUpdate(description.Unknown(m.opts.Address, nil))

	for {
		desc := m.heartbeat()
		m.opts.OnUpdate(desc)

		isUnknown := desc.LastError != nil
		if isUnknown != wasUnknown {
			entry := logrus.WithField("address", string(m.opts.Address))
			if isUnknown {
				entry.WithField("error", desc.LastError).Warn("topology: server became unreachable")
			} else {
				entry.WithField("kind", desc.Kind.String()).Info("topology: server became reachable")
			}
		}
		wasUnknown = isUnknown

		wait := m.opts.HeartbeatFrequency
		if desc.LastError != nil {
			wait = m.opts.HeartbeatConnectRetryFrequency
			if m.opts.InvalidatePool != nil {
				m.opts.InvalidatePool()
			}
		}

		select {
		case <-time.After(wait):
		case <-m.stop:
			return
		}
	}
}

// heartbeat opens (or reuses) the monitor connection, runs isMaster,
// and returns the resulting description, per spec.md §4.6 step 2.
func (m *Monitor) heartbeat() description.Server {
	if m.conn == nil || !m.conn.Alive() {
		conn, err := connection.Dial(context.Background(), connection.Options{
			Address:        m.opts.Address,
			ConnectTimeout: m.opts.ConnectTimeout,
			SocketTimeout:  m.opts.SocketTimeout,
			TLSConfig:      m.opts.TLSConfig,
			Dialer:         m.opts.Dialer,
		})
		if err != nil {
			return description.Unknown(m.opts.Address, err)
		}
		m.conn = conn
	}

	ctx := context.Background()
	if m.opts.SocketTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.SocketTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.conn.RunCommand(ctx, "admin", map[string]interface{}{"ismaster": 1})
	if err != nil {
		m.conn.Close()
		m.conn = nil
		return description.Unknown(m.opts.Address, err)
	}
	rtt := time.Since(start)

	return parseIsMaster(m.opts.Address, resp, rtt, m.opts.SingleSeed)
}

// Stop ends the monitor loop and closes its probe connection.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
	if m.conn != nil {
		m.conn.Close()
	}
}
