package topology

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/description"
	"github.com/mongodb/mongo-go-driver-core/pool"
)

// Server owns everything spec.md §4.6 says one known ServerAddress
// has: a connection pool, a dedicated monitor, the last published
// description, and an activity counter a caller can inspect while
// deciding whether to keep routing operations to it.
type Server struct {
	addr address.Address

	pool    *pool.Pool
	monitor *Monitor

	desc     atomic.Value // description.Server
	activity int64        // atomic count of checked-out connections
}

// Address returns this server's address.
func (s *Server) Address() address.Address { return s.addr }

// Description returns the most recently published ServerDescription.
func (s *Server) Description() description.Server {
	return s.desc.Load().(description.Server)
}

// ActiveOperations reports how many connections are currently checked
// out of this server's pool.
func (s *Server) ActiveOperations() int64 {
	return atomic.LoadInt64(&s.activity)
}

// Checkout reserves a connection from this server's pool, per spec.md
// §4.5, tracking it against the activity counter until Checkin.
func (s *Server) Checkout(ctx context.Context, deadline time.Time) (*connection.Connection, error) {
	atomic.AddInt64(&s.activity, 1)
	conn, err := s.pool.Checkout(ctx, deadline)
	if err != nil {
		atomic.AddInt64(&s.activity, -1)
	}
	return conn, err
}

// Checkin returns a connection obtained from Checkout.
func (s *Server) Checkin(conn *connection.Connection) {
	s.pool.Checkin(conn)
	atomic.AddInt64(&s.activity, -1)
}

// Close stops this server's monitor and closes its pool.
func (s *Server) Close() {
	s.monitor.Stop()
	s.pool.Close()
}
