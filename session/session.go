// Package session implements spec.md §2's Session leaf: a stateless
// handle that binds one request to a server chosen by a selector,
// sitting between an Operation and the Cluster.
//
// No teacher file matches this 1:1 — core/session is a later-generation
// server-session/transaction feature out of scope here. This is
// original synthesis following the request-flow diagram in spec.md §2
// ("operation asks the Session for a server matching a selector →
// Session asks the Cluster"), written in the small-struct-plus-method
// style of core/cluster.go's clusterImpl.
package session

import (
	"context"
	"time"

	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/topology"
)

// Session binds operations to a Cluster, handing out one connection
// per request from whatever server the selector picks.
type Session struct {
	cluster *topology.Cluster
}

// New wraps a Cluster in a Session.
func New(cluster *topology.Cluster) *Session {
	return &Session{cluster: cluster}
}

// ReleaseFunc returns a checked-out connection to its server's pool.
type ReleaseFunc func()

// Connection selects a server matching sel and checks out one of its
// connections, per spec.md §2's request flow. The caller must call the
// returned ReleaseFunc exactly once, on every path, to check the
// connection back in.
func (s *Session) Connection(ctx context.Context, sel selector.Func) (*connection.Connection, ReleaseFunc, error) {
	srv, err := s.cluster.SelectServer(ctx, sel)
	if err != nil {
		return nil, nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	conn, err := srv.Checkout(ctx, deadline)
	if err != nil {
		return nil, nil, err
	}

	return conn, func() { srv.Checkin(conn) }, nil
}
