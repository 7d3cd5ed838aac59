package operation

import (
	"context"

	"github.com/mongodb/mongo-go-driver-core/connection"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/msg"
	"github.com/mongodb/mongo-go-driver-core/session"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"gopkg.in/mgo.v2/bson"
)

// Cursor iterates the results of a Find, issuing OP_GET_MORE as each
// buffered batch is exhausted, per spec.md §4.9. It pins the
// connection its originating Find checked out for its entire
// lifetime — "Connection: owned by exactly one caller between
// checkout and checkin" (spec.md §5) — and releases it back to the
// server's pool on Close.
type Cursor struct {
	conn    *connection.Connection
	release session.ReleaseFunc

	ns        Namespace
	id        int64
	batchSize int32

	buffered []bson.M
	closed   bool
}

// Next advances the cursor, fetching another batch with OP_GET_MORE if
// the buffered batch is exhausted and the server-side cursor is still
// open. It returns (doc, true, nil) while documents remain, and
// (nil, false, nil) once the cursor is exhausted.
func (c *Cursor) Next(ctx context.Context) (bson.M, bool, error) {
	if len(c.buffered) == 0 && c.id != 0 {
		if err := c.getMore(ctx); err != nil {
			return nil, false, err
		}
	}
	if len(c.buffered) == 0 {
		return nil, false, nil
	}

	doc := c.buffered[0]
	c.buffered = c.buffered[1:]
	return doc, true, nil
}

func (c *Cursor) getMore(ctx context.Context) error {
	reqID := msg.NextRequestID()
	op := wiremessage.GetMore{
		RequestID:          reqID,
		FullCollectionName: c.ns.FullName(),
		NumberToReturn:     c.batchSize,
		CursorID:           c.id,
	}
	if err := c.conn.Write(ctx, op); err != nil {
		return err
	}

	reply, err := c.conn.Read(ctx)
	if err != nil {
		return err
	}
	if reply.Header.ResponseTo != reqID {
		return merr.NewProtocolError("cursor: getMore response did not match request", nil)
	}
	if reply.CursorNotFound() {
		id := c.id
		c.id = 0
		return merr.NewCursorNotFoundError(id)
	}

	docs, err := reply.Documents()
	if err != nil {
		return err
	}
	c.id = reply.CursorID
	c.buffered = docs
	return nil
}

// Close ends the cursor, sending OP_KILL_CURSORS if the server-side
// cursor is still open, then releases the pinned connection. Safe to
// call more than once.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.release()

	if c.id == 0 {
		return nil
	}
	op := wiremessage.KillCursors{RequestID: msg.NextRequestID(), CursorIDs: []int64{c.id}}
	c.id = 0
	return c.conn.Write(ctx, op)
}
