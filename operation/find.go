package operation

import (
	"context"

	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/msg"
	"github.com/mongodb/mongo-go-driver-core/readpref"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
)

// FindOptions configures Find, per spec.md §4.9's Find algorithm.
type FindOptions struct {
	Skip       int32
	BatchSize  int32
	Projection interface{}
	ReadPref   *readpref.ReadPref // nil selects Read.Primary
}

// Find issues an OP_QUERY against ns and returns a Cursor over the
// first batch plus whatever further batches OP_GET_MORE yields. The
// caller must call the Cursor's Close when done, per spec.md §4.9
// ("a non-zero cursor at close triggers OP_KILL_CURSORS scheduled on
// the same server").
func Find(ctx context.Context, sess *session.Session, ns Namespace, query interface{}, opts FindOptions) (*Cursor, error) {
	if err := ns.validate(); err != nil {
		return nil, merr.WrapConfigError(err, "operation: invalid namespace")
	}

	conn, release, err := sess.Connection(ctx, selector.ReadPref(opts.ReadPref))
	if err != nil {
		return nil, err
	}

	reqID := msg.NextRequestID()
	op := wiremessage.Query{
		RequestID:            reqID,
		FullCollectionName:   ns.FullName(),
		NumberToSkip:         opts.Skip,
		NumberToReturn:       opts.BatchSize,
		Query:                query,
		ReturnFieldsSelector: opts.Projection,
	}
	if err := conn.Write(ctx, op); err != nil {
		release()
		return nil, err
	}

	reply, err := conn.Read(ctx)
	if err != nil {
		release()
		return nil, err
	}
	if reply.Header.ResponseTo != reqID {
		release()
		return nil, merr.NewProtocolError("find: response did not match request", nil)
	}

	docs, err := reply.Documents()
	if err != nil {
		release()
		return nil, err
	}
	if reply.QueryFailure() {
		release()
		if len(docs) > 0 {
			return nil, merr.NewCommandFailure(docs[0])
		}
		return nil, merr.NewProtocolError("find: query failed with no error document", nil)
	}

	return &Cursor{
		conn:      conn,
		release:   release,
		ns:        ns,
		id:        reply.CursorID,
		batchSize: opts.BatchSize,
		buffered:  docs,
	}, nil
}
