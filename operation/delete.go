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

// DeleteResult reports how many documents an acknowledged delete
// removed.
type DeleteResult struct {
	N int
}

// Delete checks out a connection matching selector.Write() and issues
// one OP_DELETE, chaining a getLastError query when wc is
// acknowledged to learn N.
func Delete(ctx context.Context, sess *session.Session, ns Namespace, selectorDoc interface{}, singleRemove bool, wc *writeconcern.WriteConcern) (DeleteResult, error) {
	if err := ns.validate(); err != nil {
		return DeleteResult{}, merr.WrapConfigError(err, "operation: invalid namespace")
	}

	conn, release, err := sess.Connection(ctx, selector.Write())
	if err != nil {
		return DeleteResult{}, err
	}
	defer release()

	var flags wiremessage.DeleteFlag
	if singleRemove {
		flags = wiremessage.SingleRemove
	}

	op := wiremessage.Delete{
		RequestID:          msg.NextRequestID(),
		FullCollectionName: ns.FullName(),
		Flags:              flags,
		Selector:           selectorDoc,
	}
	if err := conn.Write(ctx, op); err != nil {
		return DeleteResult{}, err
	}

	if !writeconcern.Acknowledged(wc) {
		return DeleteResult{}, nil
	}

	resp, err := conn.RunCommand(ctx, ns.DB, wc.GetLastErrorCommand())
	if err != nil {
		return DeleteResult{}, err
	}
	if err := checkWriteConcernError(resp); err != nil {
		return DeleteResult{}, err
	}

	return DeleteResult{N: int(int32Field(resp["n"]))}, nil
}
