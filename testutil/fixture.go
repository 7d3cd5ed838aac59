// Package testutil is the process-wide test fixture shared by this
// module's package tests that need a live server: one Cluster, built
// once from the MONGODB_URI environment variable, reused by every test
// that opts into it.
//
// Grounded on driver-compat/src/test/unit/com/mongodb/Fixture.java's
// lazily-initialized static MongoClient, re-expressed with an explicit
// sync.Once instead of Java's synchronized-method double-checked
// pattern, per spec.md §9's "thread-unsafe lazy singleton" design note.
package testutil

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
	"github.com/mongodb/mongo-go-driver-core/topology"
)

// DefaultURI is used when MONGODB_URI is unset or empty, mirroring
// Fixture.java's DEFAULT_URI.
const DefaultURI = "mongodb://localhost:27017"

// MongoDBURIEnvVar is the environment variable this fixture reads,
// taking the place of Fixture.java's org.mongodb.test.uri system
// property.
const MongoDBURIEnvVar = "MONGODB_URI"

var (
	once     sync.Once
	cluster  *topology.Cluster
	initErr  error
	settings *connstring.ClientSettings
)

// URI returns the connection string this fixture was (or will be)
// built from.
func URI() string {
	uri := os.Getenv(MongoDBURIEnvVar)
	if uri == "" {
		uri = DefaultURI
	}
	return uri
}

func initCluster() {
	settings, initErr = connstring.Parse(URI())
	if initErr != nil {
		return
	}
	cluster, initErr = topology.New(settings)
}

// Cluster returns the process-wide test Cluster, connecting to URI()
// on first use. Every call after the first returns the same instance
// and the same error, if the first call failed.
func Cluster() (*topology.Cluster, error) {
	once.Do(initCluster)
	return cluster, initErr
}

// Session returns a Session bound to the process-wide test Cluster.
func Session() (*session.Session, error) {
	c, err := Cluster()
	if err != nil {
		return nil, err
	}
	return session.New(c), nil
}

// AwaitPrimary blocks until the test Cluster reports a server that
// accepts writes, or ctx is done, mirroring Fixture.java's getPrimary()
// poll loop — expressed here as one SelectServer call, since
// Cluster.SelectServer already blocks on a condition variable until a
// matching server appears or ctx expires (spec.md §4.7), rather than
// Fixture.java's manual Thread.sleep(100) retry loop.
func AwaitPrimary(ctx context.Context) error {
	c, err := Cluster()
	if err != nil {
		return err
	}
	_, err = c.SelectServer(ctx, selector.Write())
	return err
}

// RequireLiveServer skips the calling test (via t.Skip, through the
// minimal interface below) when no server answers URI() within a short
// deadline, so that suites exercising this fixture degrade gracefully
// in environments with no mongod running.
func RequireLiveServer(t skipper) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := AwaitPrimary(ctx); err != nil {
		t.Skipf("testutil: no live server reachable at %s: %v", URI(), err)
	}
}

// skipper is the subset of *testing.T this package depends on, kept
// narrow so this file does not import "testing" directly.
type skipper interface {
	Helper()
	Skipf(format string, args ...interface{})
}
