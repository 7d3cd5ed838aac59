package topology

import (
	"fmt"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/description"
)

// clusterFSM tracks the running ClusterDescription plus the handful of
// fields (setName, maxSetVersion, maxElectionID) that only the monitor
// needs to remember between updates. It is not safe for concurrent
// use; Cluster.apply serializes access to it.
//
// Ported from core/cluster_monitor.go's clusterMonitorFSM, narrowed to
// the transitions spec.md §4.7 actually names (Single, ReplicaSet
// with/without primary, Sharded) operating on description.Server
// instead of the teacher's ServerDesc.
type clusterFSM struct {
	kind    description.ClusterKind
	setName string
	servers []description.Server

	maxSetVersion uint32
	maxElectionID string
}

// apply folds one updated server description into the FSM and returns
// the resulting ClusterDescription. desc.Addr must already be a known
// member; updates for addresses the FSM has stopped tracking (removed
// in an earlier update) are ignored, matching the teacher's
// findServer guard.
func (fsm *clusterFSM) apply(desc description.Server) description.Cluster {
	if _, ok := fsm.findServer(desc.Addr); !ok {
		return fsm.snapshot()
	}

	switch fsm.kind {
	case description.UnknownClusterKind:
		fsm.applyToUnknown(desc)
	case description.Sharded:
		fsm.applyToSharded(desc)
	case description.ReplicaSetNoPrimary:
		fsm.applyToRSNoPrimary(desc)
	case description.ReplicaSetWithPrimary:
		fsm.applyToRSWithPrimary(desc)
	case description.Single:
		fsm.applyToSingle(desc)
	}

	return fsm.snapshot()
}

func (fsm *clusterFSM) snapshot() description.Cluster {
	servers := make([]description.Server, len(fsm.servers))
	copy(servers, fsm.servers)
	return description.Cluster{Kind: fsm.kind, SetName: fsm.setName, Servers: servers}
}

func (fsm *clusterFSM) applyToUnknown(desc description.Server) {
	switch desc.Kind {
	case description.Mongos:
		fsm.kind = description.Sharded
		fsm.replaceServer(desc)
	case description.RSPrimary:
		fsm.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		fsm.kind = description.ReplicaSetNoPrimary
		fsm.updateRSWithoutPrimary(desc)
	case description.Standalone:
		fsm.updateUnknownWithStandalone(desc)
	case description.UnknownServerKind, description.RSGhost:
		fsm.replaceServer(desc)
	}
}

func (fsm *clusterFSM) applyToSingle(desc description.Server) {
	switch desc.Kind {
	case description.UnknownServerKind:
		fsm.replaceServer(desc)
	case description.Standalone, description.Mongos:
		if fsm.setName != "" {
			fsm.removeServer(desc.Addr)
			return
		}
		fsm.replaceServer(desc)
	case description.RSPrimary, description.RSSecondary, description.RSArbiter, description.RSOther, description.RSGhost:
		if fsm.setName != "" && fsm.setName != desc.SetName {
			fsm.removeServer(desc.Addr)
			return
		}
		fsm.replaceServer(desc)
	}
}

func (fsm *clusterFSM) applyToSharded(desc description.Server) {
	switch desc.Kind {
	case description.Mongos, description.UnknownServerKind:
		fsm.replaceServer(desc)
	default:
		fsm.removeServer(desc.Addr)
	}
}

func (fsm *clusterFSM) applyToRSNoPrimary(desc description.Server) {
	switch desc.Kind {
	case description.Standalone, description.Mongos:
		fsm.removeServer(desc.Addr)
	case description.RSPrimary:
		fsm.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		fsm.updateRSWithoutPrimary(desc)
	case description.UnknownServerKind, description.RSGhost:
		fsm.replaceServer(desc)
	}
}

func (fsm *clusterFSM) applyToRSWithPrimary(desc description.Server) {
	switch desc.Kind {
	case description.Standalone, description.Mongos:
		fsm.removeServer(desc.Addr)
		fsm.checkHasPrimary()
	case description.RSPrimary:
		fsm.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		fsm.updateRSWithPrimaryFromMember(desc)
	case description.UnknownServerKind, description.RSGhost:
		fsm.replaceServer(desc)
		fsm.checkHasPrimary()
	}
}

func (fsm *clusterFSM) checkHasPrimary() {
	if _, ok := fsm.findPrimary(); ok {
		fsm.kind = description.ReplicaSetWithPrimary
	} else {
		fsm.kind = description.ReplicaSetNoPrimary
	}
}

// updateRSFromPrimary applies the stale-primary rule: a primary whose
// setVersion or electionId is older than the highest one this FSM has
// accepted is demoted to Unknown instead of being believed (an equal
// pair is accepted), per
// spec.md §4.7.
func (fsm *clusterFSM) updateRSFromPrimary(desc description.Server) {
	if fsm.setName == "" {
		fsm.setName = desc.SetName
	} else if fsm.setName != desc.SetName {
		fsm.removeServer(desc.Addr)
		fsm.checkHasPrimary()
		return
	}

	if desc.SetVersion != 0 && desc.ElectionID != "" {
		if fsm.maxSetVersion > desc.SetVersion || fsm.maxElectionID > desc.ElectionID {
			fsm.replaceServer(description.Unknown(desc.Addr, fmt.Errorf("was a primary, but its set version or election id is stale")))
			fsm.checkHasPrimary()
			return
		}
		fsm.maxElectionID = desc.ElectionID
	}
	if desc.SetVersion > fsm.maxSetVersion {
		fsm.maxSetVersion = desc.SetVersion
	}

	if i, ok := fsm.findPrimary(); ok && !address.Equal(fsm.servers[i].Addr, desc.Addr) {
		fsm.servers[i] = description.Unknown(fsm.servers[i].Addr, fmt.Errorf("was a primary, but a new primary was discovered"))
	}

	fsm.replaceServer(desc)

	members := address.NewSet(desc.Members()...)
	for i := len(fsm.servers) - 1; i >= 0; i-- {
		if !members.Contains(fsm.servers[i].Addr) {
			fsm.servers = append(fsm.servers[:i], fsm.servers[i+1:]...)
		}
	}
	for _, member := range desc.Members() {
		if _, ok := fsm.findServer(member); !ok {
			fsm.addServer(member)
		}
	}

	fsm.checkHasPrimary()
}

func (fsm *clusterFSM) updateRSWithPrimaryFromMember(desc description.Server) {
	if fsm.setName != desc.SetName {
		fsm.removeServer(desc.Addr)
		fsm.checkHasPrimary()
		return
	}
	if desc.CanonicalAddr != "" && !address.Equal(desc.Addr, desc.CanonicalAddr) {
		fsm.removeServer(desc.Addr)
		fsm.checkHasPrimary()
		return
	}

	fsm.replaceServer(desc)

	if _, ok := fsm.findPrimary(); !ok {
		fsm.kind = description.ReplicaSetNoPrimary
	}
}

func (fsm *clusterFSM) updateRSWithoutPrimary(desc description.Server) {
	if fsm.setName == "" {
		fsm.setName = desc.SetName
	} else if fsm.setName != desc.SetName {
		fsm.removeServer(desc.Addr)
		return
	}

	for _, member := range desc.Members() {
		if _, ok := fsm.findServer(member); !ok {
			fsm.addServer(member)
		}
	}

	if desc.CanonicalAddr != "" && !address.Equal(desc.Addr, desc.CanonicalAddr) {
		fsm.removeServer(desc.Addr)
		return
	}

	fsm.replaceServer(desc)
}

func (fsm *clusterFSM) updateUnknownWithStandalone(desc description.Server) {
	if len(fsm.servers) > 1 {
		fsm.removeServer(desc.Addr)
		return
	}
	fsm.kind = description.Single
	fsm.replaceServer(desc)
}

func (fsm *clusterFSM) addServer(addr address.Address) {
	fsm.servers = append(fsm.servers, description.Unknown(addr, nil))
}

func (fsm *clusterFSM) findServer(addr address.Address) (int, bool) {
	for i, s := range fsm.servers {
		if address.Equal(s.Addr, addr) {
			return i, true
		}
	}
	return 0, false
}

func (fsm *clusterFSM) findPrimary() (int, bool) {
	for i, s := range fsm.servers {
		if s.Kind == description.RSPrimary {
			return i, true
		}
	}
	return 0, false
}

func (fsm *clusterFSM) removeServer(addr address.Address) {
	if i, ok := fsm.findServer(addr); ok {
		fsm.servers = append(fsm.servers[:i], fsm.servers[i+1:]...)
	}
}

func (fsm *clusterFSM) replaceServer(desc description.Server) bool {
	if i, ok := fsm.findServer(desc.Addr); ok {
		fsm.servers[i] = desc
		return true
	}
	return false
}
