package pool_test

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/pool"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"gopkg.in/mgo.v2/bson"
)

// fakeServer answers the fixed isMaster/buildInfo/getLastError
// handshake sequence connection.Dial issues, then keeps reading and
// discarding frames until conn is closed, so the same pipe can be
// reused as an idle pooled connection without wedging on a later
// handshake it never runs.
func fakeServer(t *testing.T, conn net.Conn) {
	t.Helper()
	docs := []bson.M{
		{"ismaster": true, "maxWireVersion": 6, "ok": 1},
		{"version": "4.0.0", "ok": 1},
		{"connectionId": 1, "ok": 1},
	}
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
		// Drain any further requests (none expected in these tests)
		// so the server side doesn't block writers forever.
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
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
	b := wiremessage.AppendHeader(nil, wiremessage.Header{ResponseTo: responseTo, OpCode: wiremessage.OpReply})
	b = append(b, 0, 0, 0, 0)
	b = append(b, 0, 0, 0, 0, 0, 0, 0, 0)
	b = append(b, 0, 0, 0, 0)
	b = append(b, 1, 0, 0, 0)
	docBytes, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	b = append(b, docBytes...)
	wiremessage.SetMessageLength(b, 0)
	return b, nil
}

// dialFake dials through a fresh net.Pipe each call and records every
// client-side pipe end it created, so tests can close the server side
// out from under a pooled connection to simulate a dead socket.
func dialFake(t *testing.T) (pool.Dialer, *[]net.Conn) {
	var serverEnds []net.Conn
	d := func(ctx context.Context) (*connection.Connection, error) {
		clientConn, serverConn := net.Pipe()
		serverEnds = append(serverEnds, serverConn)
		fakeServer(t, serverConn)
		netDialer := func(ctx context.Context, network, addr string) (net.Conn, error) {
			return clientConn, nil
		}
		return connection.Dial(ctx, connection.Options{
			Address: "localhost:27017",
			Dialer:  netDialer,
		})
	}
	return d, &serverEnds
}

func TestPool_CheckoutDialsUnderMax(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:     address.Address("localhost:27017"),
		MaxPoolSize: 2,
		Dial:        dial,
	})
	defer p.Close()

	c1, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)
	require.True(t, c1.Alive())

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.Total)
}

func TestPool_CheckinReturnsToAvailable(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:     address.Address("localhost:27017"),
		MaxPoolSize: 2,
		Dial:        dial,
	})
	defer p.Close()

	c1, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)
	p.Checkin(c1)

	require.Equal(t, uint64(1), p.Stats().Available)

	c2, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, uint64(0), p.Stats().Available)
}

func TestPool_WaitQueueFull(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:          address.Address("localhost:27017"),
		MaxPoolSize:      1,
		MaxWaitQueueSize: 1,
		Dial:             dial,
	})
	defer p.Close()

	_, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)

	// Occupy the single wait-queue slot with a long-waiting checkout.
	go func() {
		p.Checkout(context.Background(), time.Now().Add(time.Second))
	}()
	require.Eventually(t, func() bool {
		return p.Stats().Waiters >= 1
	}, time.Second, 5*time.Millisecond)

	_, err = p.Checkout(context.Background(), time.Time{})
	require.Equal(t, merr.ErrWaitQueueFull, err)
}

func TestPool_WaitQueueTimeout(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:          address.Address("localhost:27017"),
		MaxPoolSize:      1,
		MaxWaitQueueSize: 5,
		Dial:             dial,
	})
	defer p.Close()

	_, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)

	deadline := time.Now().Add(50 * time.Millisecond)
	_, err = p.Checkout(context.Background(), deadline)
	require.Equal(t, merr.ErrWaitQueueTimeout, err)
}

func TestPool_CheckoutAfterClosedFails(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:     address.Address("localhost:27017"),
		MaxPoolSize: 2,
		Dial:        dial,
	})
	p.Close()

	_, err := p.Checkout(context.Background(), time.Time{})
	require.Equal(t, merr.ErrPoolClosed, err)
}

func TestPool_CheckinPoisonsDeadConnection(t *testing.T) {
	dial, serverEnds := dialFake(t)
	p := pool.New(pool.Options{
		Address:     address.Address("localhost:27017"),
		MaxPoolSize: 2,
		Dial:        dial,
	})
	defer p.Close()

	c1, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)

	for _, s := range *serverEnds {
		s.Close()
	}
	c1.Close()

	p.Checkin(c1)
	require.Equal(t, uint64(0), p.Stats().Total)
	require.Equal(t, uint64(0), p.Stats().Available)
}

func TestPool_InvalidatePoisonsOnCheckin(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:     address.Address("localhost:27017"),
		MaxPoolSize: 2,
		Dial:        dial,
	})
	defer p.Close()

	c1, err := p.Checkout(context.Background(), time.Time{})
	require.NoError(t, err)

	p.Invalidate()

	p.Checkin(c1)
	require.Equal(t, uint64(0), p.Stats().Total)
	require.Equal(t, uint64(0), p.Stats().Available)
}

func TestPool_MaintenanceTopsUpToMinimum(t *testing.T) {
	dial, _ := dialFake(t)
	p := pool.New(pool.Options{
		Address:              address.Address("localhost:27017"),
		MinPoolSize:          2,
		MaxPoolSize:          5,
		MaintenanceFrequency: 10 * time.Millisecond,
		Dial:                 dial,
	})
	defer p.Close()

	require.Eventually(t, func() bool {
		return p.Stats().Total >= 2
	}, time.Second, 10*time.Millisecond)
}
