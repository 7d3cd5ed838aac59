// Package description holds the immutable value types published by
// the topology monitor: one Server per known address, folded into one
// Cluster snapshot. See spec.md §3 (ServerDescription/ClusterDescription).
package description

import (
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
)

// VersionRange is an inclusive [Min, Max] range, used for wire
// versions, following yamgo/model/range.go.
type VersionRange struct {
	Min int32
	Max int32
}

// Includes reports whether v falls within the range.
func (r VersionRange) Includes(v int32) bool {
	return v >= r.Min && v <= r.Max
}

// Server is an immutable description of one server, built from an
// isMaster reply. Once published by the monitor it is
// never mutated; a new heartbeat produces a new Server value.
type Server struct {
	Addr address.Address

	Kind ServerKind

	CanonicalAddr address.Address
	Hosts         []address.Address
	Passives      []address.Address
	Arbiters      []address.Address
	Tags          TagSet

	SetName    string
	SetVersion uint32
	ElectionID string // hex-encoded ObjectId, empty if unset

	Primary address.Address // the primary this member believes is current

	MinWireVersion int32
	MaxWireVersion int32

	MaxDocumentSize uint32
	MaxMessageSize  uint32
	MaxBatchCount   uint16

	AverageRTT    time.Duration
	AverageRTTSet bool

	Version string // isMaster reply's "version" field if present (empty otherwise), diagnostics only

	LastUpdateTime time.Time

	// LastError is set when the most recent heartbeat failed or the
	// server reported ok:0; Kind is UnknownServerKind whenever this is
	// non-nil.
	LastError error
}

// Members returns Hosts+Passives+Arbiters, the full replica-set
// membership list this server reported.
func (s Server) Members() []address.Address {
	all := make([]address.Address, 0, len(s.Hosts)+len(s.Passives)+len(s.Arbiters))
	all = append(all, s.Hosts...)
	all = append(all, s.Passives...)
	all = append(all, s.Arbiters...)
	return all
}

// OK reports whether the last heartbeat succeeded.
func (s Server) OK() bool {
	return s.LastError == nil
}

// Unknown builds the placeholder description a monitor publishes
// before its first successful heartbeat, or after a failed one.
func Unknown(addr address.Address, err error) Server {
	return Server{
		Addr:      addr,
		Kind:      UnknownServerKind,
		LastError: err,
	}
}
