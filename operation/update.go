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

// UpdateResult reports the outcome of an acknowledged update.
// Unacknowledged updates return the zero value.
type UpdateResult struct {
	N               int
	UpdatedExisting bool
	UpsertedID      interface{}
}

// UpdateOptions configures Update, per spec.md §4.9's "every
// update/delete carries a flags byte (upsert, multi / single-remove)".
type UpdateOptions struct {
	Upsert bool
	Multi  bool
}

// Update checks out a connection matching selector.Write() and issues
// one OP_UPDATE, chaining a getLastError query when wc is
// acknowledged to learn N/UpdatedExisting/UpsertedID.
func Update(ctx context.Context, sess *session.Session, ns Namespace, selectorDoc, update interface{}, opts UpdateOptions, wc *writeconcern.WriteConcern) (UpdateResult, error) {
	if err := ns.validate(); err != nil {
		return UpdateResult{}, merr.WrapConfigError(err, "operation: invalid namespace")
	}

	conn, release, err := sess.Connection(ctx, selector.Write())
	if err != nil {
		return UpdateResult{}, err
	}
	defer release()

	var flags wiremessage.UpdateFlag
	if opts.Upsert {
		flags |= wiremessage.Upsert
	}
	if opts.Multi {
		flags |= wiremessage.MultiUpdate
	}

	op := wiremessage.Update{
		RequestID:          msg.NextRequestID(),
		FullCollectionName: ns.FullName(),
		Flags:              flags,
		Selector:           selectorDoc,
		Update:             update,
	}
	if err := conn.Write(ctx, op); err != nil {
		return UpdateResult{}, err
	}

	if !writeconcern.Acknowledged(wc) {
		return UpdateResult{}, nil
	}

	resp, err := conn.RunCommand(ctx, ns.DB, wc.GetLastErrorCommand())
	if err != nil {
		return UpdateResult{}, err
	}
	if err := checkWriteConcernError(resp); err != nil {
		return UpdateResult{}, err
	}

	result := UpdateResult{N: int(int32Field(resp["n"]))}
	result.UpdatedExisting, _ = resp["updatedExisting"].(bool)
	result.UpsertedID = resp["upserted"]
	return result, nil
}
