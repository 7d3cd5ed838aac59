package operation

import (
	"context"

	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/msg"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"github.com/mongodb/mongo-go-driver-core/writeconcern"
)

// InsertResult reports how many documents Insert actually wrote.
type InsertResult struct {
	N int
}

// Insert checks out a connection matching selector.Write() and writes
// docs in maxMessageSize/maxWriteBatchSize-bounded OP_INSERT batches,
// per spec.md §4.9's Insert algorithm. When wc is acknowledged, each
// batch is followed by a getLastError query on the same connection;
// an unacknowledged concern fires the batches and returns immediately.
//
// Grounded on core/command/insert.go's Insert type for the
// encode/round-trip/result shape, rewritten around this module's
// legacy OP_INSERT + chained getLastError instead of the teacher's
// command-based write protocol (this module targets servers with
// maxWireVersion 0, which predates command writes, per spec.md §6).
func Insert(ctx context.Context, sess *session.Session, ns Namespace, docs []interface{}, wc *writeconcern.WriteConcern) (InsertResult, error) {
	if err := ns.validate(); err != nil {
		return InsertResult{}, merr.WrapConfigError(err, "operation: invalid namespace")
	}

	conn, release, err := sess.Connection(ctx, selector.Write())
	if err != nil {
		return InsertResult{}, err
	}
	defer release()

	batches, err := msg.SplitInsertBatches(docs, conn.MaxMessageSize(), conn.MaxWriteBatchSize())
	if err != nil {
		return InsertResult{}, err
	}

	var result InsertResult
	for _, batch := range batches {
		op := wiremessage.Insert{
			RequestID:          msg.NextRequestID(),
			FullCollectionName: ns.FullName(),
			Documents:          batch,
		}
		if err := conn.Write(ctx, op); err != nil {
			return result, err
		}

		if !writeconcern.Acknowledged(wc) {
			result.N += len(batch)
			continue
		}

		resp, err := conn.RunCommand(ctx, ns.DB, wc.GetLastErrorCommand())
		if err != nil {
			return result, err
		}
		if err := checkWriteConcernError(resp); err != nil {
			return result, err
		}
		result.N += len(batch)
	}

	return result, nil
}
