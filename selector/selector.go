// Package selector implements the read/write server selectors of
// spec.md §4.8 as composable functions over a description.Cluster
// snapshot, following the
// yamgo/private/cluster/selector_latency_test.go shape
// (func(Cluster, []Server) ([]Server, error)).
package selector

import (
	"math/rand"
	"time"

	"github.com/mongodb/mongo-go-driver-core/description"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/readpref"
)

// Func filters a set of candidate servers down to those eligible for
// one operation, given the current cluster snapshot.
type Func func(description.Cluster, []description.Server) ([]description.Server, error)

// LatencyWindow is the 15ms band above the minimum RTT within which
// candidates are considered equivalent, per spec.md's GLOSSARY.
const LatencyWindow = 15 * time.Millisecond

// Write selects a server eligible to accept a write: Standalone,
// RSPrimary, or Mongos.
func Write() Func {
	return func(_ description.Cluster, servers []description.Server) ([]description.Server, error) {
		return filter(servers, func(s description.Server) bool {
			return s.Kind == description.Standalone || s.Kind == description.RSPrimary || s.Kind == description.Mongos
		}), nil
	}
}

// ReadPref builds the Func for a read preference, per spec.md §4.8.
// Shard routers and standalones ignore tags. A standalone is eligible
// only where a primary is (Primary, and the primary fallback of the
// *Preferred modes); Secondary and Nearest never select one. A Sharded
// cluster collapses every read preference to "any Mongos".
func ReadPref(rp *readpref.ReadPref) Func {
	switch rp.Mode() {
	case readpref.PrimaryMode:
		return primary()
	case readpref.SecondaryMode:
		return secondary(rp)
	case readpref.PrimaryPreferredMode:
		return preferred(primary(), secondary(rp))
	case readpref.SecondaryPreferredMode:
		return preferred(secondary(rp), primary())
	case readpref.NearestMode:
		return nearest(rp)
	default:
		return primary()
	}
}

func primary() Func {
	return func(_ description.Cluster, servers []description.Server) ([]description.Server, error) {
		if anyMongos(servers) {
			return filter(servers, isMongos), nil
		}
		return filter(servers, func(s description.Server) bool {
			return s.Kind == description.RSPrimary || s.Kind == description.Standalone || s.Kind == description.Mongos
		}), nil
	}
}

func secondary(rp *readpref.ReadPref) Func {
	return func(_ description.Cluster, servers []description.Server) ([]description.Server, error) {
		if anyMongos(servers) {
			return filter(servers, isMongos), nil
		}
		return filter(servers, func(s description.Server) bool {
			return s.Kind == description.RSSecondary && rp.TagSets().Matches(s.Tags)
		}), nil
	}
}

func nearest(rp *readpref.ReadPref) Func {
	return func(c description.Cluster, servers []description.Server) ([]description.Server, error) {
		if anyMongos(servers) {
			return Latency(filter(servers, isMongos)), nil
		}
		return Latency(filter(servers, func(s description.Server) bool {
			ok := s.Kind == description.RSPrimary || s.Kind == description.RSSecondary
			return ok && rp.TagSets().Matches(s.Tags)
		})), nil
	}
}

// preferred tries "first"; if it selects nothing, falls back to "second".
func preferred(first, second Func) Func {
	return func(c description.Cluster, servers []description.Server) ([]description.Server, error) {
		candidates, err := first(c, servers)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
		return second(c, servers)
	}
}

// Latency applies the latency-window rule: every server within
// LatencyWindow of the minimum RTT among candidates is kept. Servers
// with no RTT sample are dropped unless no candidate has one, in which
// case all candidates are returned.
func Latency(servers []description.Server) []description.Server {
	if len(servers) <= 1 {
		return servers
	}
	var min time.Duration
	haveMin := false
	for _, s := range servers {
		if !s.AverageRTTSet {
			continue
		}
		if !haveMin || s.AverageRTT < min {
			min = s.AverageRTT
			haveMin = true
		}
	}
	if !haveMin {
		return servers
	}
	return filter(servers, func(s description.Server) bool {
		return s.AverageRTTSet && s.AverageRTT <= min+LatencyWindow
	})
}

// Pick chooses uniformly at random among the candidates, per spec.md
// §4.7's "ties broken by ... choose uniformly at random".
func Pick(servers []description.Server) (description.Server, error) {
	if len(servers) == 0 {
		return description.Server{}, merr.NewInternalError("Pick called with no candidates")
	}
	return servers[rand.Intn(len(servers))], nil
}

func filter(servers []description.Server, pred func(description.Server) bool) []description.Server {
	out := make([]description.Server, 0, len(servers))
	for _, s := range servers {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

func isMongos(s description.Server) bool { return s.Kind == description.Mongos }

func anyMongos(servers []description.Server) bool {
	for _, s := range servers {
		if s.Kind == description.Mongos {
			return true
		}
	}
	return false
}
