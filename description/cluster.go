package description

import "github.com/mongodb/mongo-go-driver-core/address"

// Cluster is an immutable snapshot of every known server's
// description, plus the topology mode computed from them. The
// topology.Cluster atomically swaps the current snapshot; readers
// always observe a consistent one (spec.md §3 invariant).
type Cluster struct {
	Kind    ClusterKind
	SetName string
	Servers []Server
}

// Server returns the description for addr, if the cluster currently
// knows about it.
func (c Cluster) Server(addr address.Address) (Server, bool) {
	for _, s := range c.Servers {
		if address.Equal(s.Addr, addr) {
			return s, true
		}
	}
	return Server{}, false
}
