package description

// ServerKind and ClusterKind are encoded as small bitmasks so that
// RS-membership can be tested with one bitwise AND, following
// yamgo/model/kind.go.
type ServerKind uint32

// ServerKind constants. Bit 1 (the "RSMember" bit) is set on every
// kind that belongs to a replica set.
const (
	UnknownServerKind ServerKind = 0
	Standalone        ServerKind = 1
	RSMember          ServerKind = 2
	RSPrimary         ServerKind = 4 + RSMember
	RSSecondary       ServerKind = 8 + RSMember
	RSArbiter         ServerKind = 16 + RSMember
	RSGhost           ServerKind = 32 + RSMember
	RSOther           ServerKind = 64 + RSMember
	Mongos            ServerKind = 256
)

// IsReplicaSetMember reports whether kind belongs to a replica set
// (primary, secondary, arbiter, ghost, or other).
func (k ServerKind) IsReplicaSetMember() bool {
	return k&RSMember == RSMember && k != UnknownServerKind
}

func (k ServerKind) String() string {
	switch k {
	case Standalone:
		return "Standalone"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSGhost:
		return "RSGhost"
	case RSOther:
		return "RSOther"
	case Mongos:
		return "Mongos"
	default:
		return "Unknown"
	}
}

// ClusterKind is the topology mode computed from observed servers.
type ClusterKind uint32

// ClusterKind constants.
const (
	UnknownClusterKind    ClusterKind = 0
	Single                ClusterKind = 1
	ReplicaSet            ClusterKind = 2
	ReplicaSetNoPrimary   ClusterKind = 4 + ReplicaSet
	ReplicaSetWithPrimary ClusterKind = 8 + ReplicaSet
	Sharded               ClusterKind = 256
)

func (k ClusterKind) String() string {
	switch k {
	case Single:
		return "Single"
	case ReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case ReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case Sharded:
		return "Sharded"
	default:
		return "Unknown"
	}
}
