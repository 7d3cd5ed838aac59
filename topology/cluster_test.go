package topology

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/description"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/selector"
)

// newTestCluster builds a Cluster with no real pools/monitors, for
// exercising the FSM-snapshot + selection logic in isolation.
func newTestCluster(t *testing.T) *Cluster {
	t.Helper()
	c := &Cluster{
		settings: &connstring.ClientSettings{MaxWaitTime: 200 * time.Millisecond},
		servers:  make(map[address.Address]*Server),
	}
	c.cond = sync.NewCond(&c.mu)
	c.fsm = clusterFSM{kind: description.UnknownClusterKind}
	return c
}

func (c *Cluster) addTestServer(addr address.Address, desc description.Server) {
	s := &Server{addr: addr}
	s.desc.Store(desc)
	c.servers[addr] = s
	c.fsm.addServer(addr)
	c.fsm.replaceServer(desc)
}

func TestCluster_SelectServerReturnsImmediateMatch(t *testing.T) {
	c := newTestCluster(t)
	addr := address.Address("a:27017").Canonicalize()
	c.fsm.kind = description.Single
	c.addTestServer(addr, description.Server{Addr: addr, Kind: description.Standalone})

	srv, err := c.SelectServer(context.Background(), selector.Write())
	require.NoError(t, err)
	require.Equal(t, addr, srv.Address())
}

func TestCluster_SelectServerTimesOutWithNoMatch(t *testing.T) {
	c := newTestCluster(t)
	addr := address.Address("a:27017").Canonicalize()
	c.fsm.kind = description.ReplicaSetNoPrimary
	c.addTestServer(addr, description.Server{Addr: addr, Kind: description.RSSecondary})

	_, err := c.SelectServer(context.Background(), selector.Write())
	require.IsType(t, &merr.NoServerAvailableError{}, err)
}

func TestCluster_SelectServerWaitsForChange(t *testing.T) {
	c := newTestCluster(t)
	addr := address.Address("a:27017").Canonicalize()
	c.fsm.kind = description.ReplicaSetNoPrimary
	c.addTestServer(addr, description.Server{Addr: addr, Kind: description.RSSecondary})

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.apply(description.Server{Addr: addr, Kind: description.RSPrimary, Hosts: []address.Address{addr}})
	}()

	srv, err := c.SelectServer(context.Background(), selector.Write())
	require.NoError(t, err)
	require.Equal(t, addr, srv.Address())
}

func TestCluster_SelectServerFailsWhenClosed(t *testing.T) {
	c := newTestCluster(t)
	c.closed = true

	_, err := c.SelectServer(context.Background(), selector.Write())
	require.Equal(t, merr.ErrClusterClosed, err)
}
