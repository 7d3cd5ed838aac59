// Package connection implements spec.md §4.4: a single authenticated
// TCP channel that dials, optionally applies TLS, runs authentication
// for each supplied credential, and then exposes framed send/receive
// primitives with socketTimeout enforced on both halves.
//
// Grounded on core/conn.go's transportConnection (dial, initialize,
// wrapError) and conn/protocol.go's ExecuteCommand/ExecuteCommands
// response-reading shape, narrowed to gopkg.in/mgo.v2/bson documents
// instead of bsonx.
package connection

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/msg"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"gopkg.in/mgo.v2/bson"
)

var globalConnectionID int32

func nextConnectionID() int32 {
	return atomic.AddInt32(&globalConnectionID, 1)
}

// Connection is a single authenticated TCP socket to one server, per
// spec.md §3's Connection type.
type Connection struct {
	id   string
	addr address.Address
	nc   net.Conn

	socketTimeout time.Duration

	createdAt  time.Time
	lastUsedAt time.Time

	minWireVersion    int32
	maxWireVersion    int32
	maxDocumentSize   uint32
	maxMessageSize    uint32
	maxWriteBatchSize uint16
	version           string
	gitVersion        string
	readOnly          bool

	dead int32 // atomic bool; set on any I/O error
}

// ID returns the connection's log-correlation identifier:
// "<addr>[-<n>]" with n from the process-local dial-time counter, replaced with
// "<addr>[<serverConnectionId>]" once the post-handshake getLastError
// round trip succeeds, per SPEC_FULL.md's connection-identifier
// expansion.
func (c *Connection) ID() string { return c.id }

// Address returns the server address this connection is dialed to.
func (c *Connection) Address() address.Address { return c.addr }

// Alive reports whether the connection has not been poisoned by an
// I/O error.
func (c *Connection) Alive() bool { return atomic.LoadInt32(&c.dead) == 0 }

// CreatedAt returns the connection's dial time, used by the pool to
// enforce maxConnectionLifeTime.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// LastUsedAt returns the time of the last checkout. The pool does not
// read it; it measures maxConnectionIdleTime from its own check-in time.
func (c *Connection) LastUsedAt() time.Time { return c.lastUsedAt }

// MarkUsed records the connection as just having been checked out.
func (c *Connection) MarkUsed() { c.lastUsedAt = time.Now() }

// MaxDocumentSize is the server's reported maxBsonObjectSize.
func (c *Connection) MaxDocumentSize() uint32 { return c.maxDocumentSize }

// MaxMessageSize is the server's reported maxMessageSizeBytes.
func (c *Connection) MaxMessageSize() uint32 { return c.maxMessageSize }

// MaxWriteBatchSize is the server's reported maxWriteBatchSize.
func (c *Connection) MaxWriteBatchSize() uint16 { return c.maxWriteBatchSize }

// WireVersionRange returns the server's supported wire-protocol range.
func (c *Connection) WireVersionRange() (int32, int32) { return c.minWireVersion, c.maxWireVersion }

func (c *Connection) poison() { atomic.StoreInt32(&c.dead, 1) }

// Close closes the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	c.poison()
	return c.nc.Close()
}

// Write sends one framed request, per spec.md §4.4's send(frame).
func (c *Connection) Write(ctx context.Context, m msg.Appendable) error {
	if !c.Alive() {
		return merr.NewTransportError(merr.SocketError, string(c.addr), fmt.Errorf("connection is poisoned"))
	}
	c.applyDeadline(ctx)
	if err := msg.WriteMessage(c.nc, m, c.maxMessageSize); err != nil {
		c.poison()
		return merr.NewTransportError(socketErrorKind(err, merr.SocketWriteTimeout), string(c.addr), err)
	}
	return nil
}

// Read receives one framed reply, per spec.md §4.4's receive() → frame.
func (c *Connection) Read(ctx context.Context) (wiremessage.Reply, error) {
	if !c.Alive() {
		return wiremessage.Reply{}, merr.NewTransportError(merr.SocketError, string(c.addr), fmt.Errorf("connection is poisoned"))
	}
	c.applyDeadline(ctx)
	reply, err := msg.ReadReply(c.nc)
	if err != nil {
		c.poison()
		return wiremessage.Reply{}, merr.NewTransportError(socketErrorKind(err, merr.SocketReadTimeout), string(c.addr), err)
	}
	return reply, nil
}

// socketErrorKind classifies err as a timeout kind if it reports
// itself as one (net.Error.Timeout), else as a generic SocketError.
func socketErrorKind(err error, timeoutKind merr.SocketErrorKind) merr.SocketErrorKind {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return timeoutKind
	}
	return merr.SocketError
}

func (c *Connection) applyDeadline(ctx context.Context) {
	deadline := time.Time{}
	if c.socketTimeout > 0 {
		deadline = time.Now().Add(c.socketTimeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if deadline.IsZero() || ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
	}
	c.nc.SetDeadline(deadline)
}

// RunCommand runs a single admin/database command and returns its
// reply document, satisfying auth.CommandRunner so authenticators can
// drive this connection without this package importing auth.
func (c *Connection) RunCommand(ctx context.Context, db string, cmd interface{}) (map[string]interface{}, error) {
	reqID := msg.NextRequestID()
	q := msg.NewCommand(reqID, db, true, cmd)

	if err := c.Write(ctx, q); err != nil {
		return nil, err
	}
	reply, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	if reply.Header.ResponseTo != reqID {
		return nil, merr.NewProtocolError(fmt.Sprintf("received out of order response: expected %d but got %d", reqID, reply.Header.ResponseTo), nil)
	}

	docs, err := reply.Documents()
	if err != nil {
		return nil, merr.NewProtocolError("failed to read command response document", err)
	}
	if len(docs) == 0 {
		return nil, merr.NewProtocolError("command returned no document", nil)
	}
	doc := docs[0]

	if reply.QueryFailure() || !commandOK(doc) {
		return map[string]interface{}(doc), merr.NewCommandFailure(doc)
	}
	return map[string]interface{}(doc), nil
}

func commandOK(doc bson.M) bool {
	switch v := doc["ok"].(type) {
	case int:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	case bool:
		return v
	default:
		return false
	}
}
