package connection_test

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"gopkg.in/mgo.v2/bson"
)

// fakeServer drains one framed request from conn and replies with doc,
// echoing the request's requestId as responseTo, the same minimal
// shape core/conn_test.go's integration harness exercises against a
// live mongod but wired to an in-process net.Pipe instead.
func fakeServer(t *testing.T, conn net.Conn, docs ...bson.M) {
	t.Helper()
	go func() {
		for _, doc := range docs {
			var lenBytes [4]byte
			if _, err := readFull(conn, lenBytes[:]); err != nil {
				return
			}
			length := int32(binary.LittleEndian.Uint32(lenBytes[:]))
			rest := make([]byte, length-4)
			if _, err := readFull(conn, rest); err != nil {
				return
			}
			requestID := int32(binary.LittleEndian.Uint32(rest[0:4]))

			reply, err := encodeReply(requestID, doc)
			if err != nil {
				return
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func encodeReply(responseTo int32, doc bson.M) ([]byte, error) {
	start := 0
	b := wiremessage.AppendHeader(nil, wiremessage.Header{ResponseTo: responseTo, OpCode: wiremessage.OpReply})
	b = append(b, 0, 0, 0, 0) // responseFlags
	b = append(b, 0, 0, 0, 0, 0, 0, 0, 0) // cursorID
	b = append(b, 0, 0, 0, 0) // startingFrom
	b = append(b, 1, 0, 0, 0) // numberReturned
	docBytes, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	b = append(b, docBytes...)
	wiremessage.SetMessageLength(b, start)
	return b, nil
}

func TestConnection_RunCommand(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	fakeServer(t, serverConn,
		bson.M{"ismaster": true, "maxWireVersion": 6, "ok": 1},
		bson.M{"version": "4.0.0", "ok": 1},
		bson.M{"connectionId": 42, "ok": 1},
	)

	dialer := func(ctx context.Context, network, address string) (net.Conn, error) {
		return clientConn, nil
	}

	c, err := connection.Dial(context.Background(), connection.Options{
		Address: "localhost:27017",
		Dialer:  dialer,
	})
	require.NoError(t, err)
	require.True(t, c.Alive())

	min, max := c.WireVersionRange()
	require.Equal(t, int32(6), max)
	require.Equal(t, int32(0), min)
}

func TestConnection_PoisonedAfterIOError(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	serverConn.Close()
	defer clientConn.Close()

	dialer := func(ctx context.Context, network, address string) (net.Conn, error) {
		return clientConn, nil
	}

	_, err := connection.Dial(context.Background(), connection.Options{
		Address:        "localhost:27017",
		Dialer:         dialer,
		ConnectTimeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
}
