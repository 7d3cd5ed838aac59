package operation_test

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/session"
	"github.com/mongodb/mongo-go-driver-core/topology"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"
)

// fakeReply is what a commandHandler returns for one OP_QUERY/
// OP_GET_MORE: the returned batch, the server-side cursor id left
// open afterward (0 means exhausted), and the OP_REPLY responseFlags.
type fakeReply struct {
	docs     []bson.M
	cursorID int64
	flags    wiremessage.ReplyFlag
}

func one(doc bson.M) fakeReply { return fakeReply{docs: []bson.M{doc}} }

// commandHandler answers one OP_QUERY command (keyed by its db and raw
// document) or OP_GET_MORE (keyed by db == "" and cmd == nil).
type commandHandler func(db string, cmd bson.M) fakeReply

// serveFake answers the dial-time handshake on conn, then dispatches
// every subsequent OP_QUERY/OP_GET_MORE to handle and silently drains
// fire-and-forget OP_INSERT/OP_UPDATE/OP_DELETE/OP_KILL_CURSORS
// frames, the way a real mongod never replies to those opcodes.
func serveFake(t *testing.T, conn net.Conn, handle commandHandler) {
	t.Helper()
	handshake := []fakeReply{
		one(bson.M{"ismaster": true, "maxWireVersion": 6, "maxWriteBatchSize": 1000, "ok": 1}),
		one(bson.M{"version": "4.0.0", "ok": 1}),
		one(bson.M{"connectionId": 7, "ok": 1}),
	}
	go func() {
		i := 0
		for {
			h, body, err := readFrame(conn)
			if err != nil {
				return
			}

			switch h.OpCode {
			case wiremessage.OpQuery:
				collName, cmdDoc := parseQuery(body)
				var reply fakeReply
				switch {
				case i < len(handshake):
					reply = handshake[i]
				case cmdDoc["ismaster"] != nil:
					// A monitor heartbeat probe, distinct from the
					// one-time dial handshake above.
					reply = one(bson.M{"ismaster": true, "maxWireVersion": 6, "maxWriteBatchSize": 1000, "ok": 1})
				default:
					db := collName
					if idx := indexOfDot(collName); idx >= 0 {
						db = collName[:idx]
					}
					reply = handle(db, cmdDoc)
				}
				i++
				writeReply(t, conn, h.RequestID, reply)
			case wiremessage.OpGetMore:
				writeReply(t, conn, h.RequestID, handle("", nil))
			default:
				// OP_INSERT / OP_UPDATE / OP_DELETE / OP_KILL_CURSORS: no reply.
			}
		}
	}()
}

func indexOfDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func readFrame(conn net.Conn) (wiremessage.Header, []byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(conn, lenBytes[:]); err != nil {
		return wiremessage.Header{}, nil, err
	}
	length := int32(binary.LittleEndian.Uint32(lenBytes[:]))
	rest := make([]byte, length-4)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return wiremessage.Header{}, nil, err
	}
	full := append(lenBytes[:], rest...)
	h, err := wiremessage.ReadHeader(full)
	return h, full, err
}

// parseQuery pulls the collection name and the BSON query/command
// document out of a raw OP_QUERY frame (flags, cstring, skip,
// numberToReturn, document — the fixed OP_QUERY body shape).
func parseQuery(full []byte) (string, bson.M) {
	pos := wiremessage.HeaderLen + 4 // skip flags
	start := pos
	for full[pos] != 0 {
		pos++
	}
	collName := string(full[start:pos])
	pos++        // nul terminator
	pos += 4 + 4 // numberToSkip, numberToReturn

	docLen := int32(binary.LittleEndian.Uint32(full[pos:]))
	var doc bson.M
	_ = bson.Unmarshal(full[pos:pos+int(docLen)], &doc)
	return collName, doc
}

func writeReply(t *testing.T, conn net.Conn, responseTo int32, reply fakeReply) {
	t.Helper()
	start := 0
	b := wiremessage.AppendHeader(nil, wiremessage.Header{ResponseTo: responseTo, OpCode: wiremessage.OpReply})
	b = append(b, byte(reply.flags), byte(reply.flags>>8), byte(reply.flags>>16), byte(reply.flags>>24)) // responseFlags
	cursorID := reply.cursorID
	b = append(b, byte(cursorID), byte(cursorID>>8), byte(cursorID>>16), byte(cursorID>>24),
		byte(cursorID>>32), byte(cursorID>>40), byte(cursorID>>48), byte(cursorID>>56))
	b = append(b, 0, 0, 0, 0) // startingFrom
	n := int32(len(reply.docs))
	b = append(b, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	for _, doc := range reply.docs {
		docBytes, err := bson.Marshal(doc)
		require.NoError(t, err)
		b = append(b, docBytes...)
	}
	wiremessage.SetMessageLength(b, start)
	if _, err := conn.Write(b); err != nil {
		return
	}
}

// newFakeSession stands up a single-server Cluster whose every dial
// gets its own net.Pipe pair served by serveFake, and wraps it in a
// Session, for exercising operation/*.go without a live mongod.
func newFakeSession(t *testing.T, handle commandHandler) *session.Session {
	t.Helper()
	dialer := func(ctx context.Context, network, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		serveFake(t, server, handle)
		return client, nil
	}

	settings := &connstring.ClientSettings{
		Hosts:              []address.Address{"localhost:27017"},
		MaxPoolSize:        4,
		MaxWaitQueueSize:   4,
		MaxWaitTime:        2 * time.Second,
		HeartbeatFrequency: 10 * time.Millisecond,
	}

	cluster, err := topology.New(settings, topology.WithDialer(dialer))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)

	return session.New(cluster)
}
