package operation

import (
	"context"

	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
	"gopkg.in/mgo.v2/bson"
)

// Drop runs the drop command against ns, swallowing the one
// CommandFailure spec.md §4.10/§7 permits here: a reply whose message
// is exactly "ns not found" (the collection was already gone).
func Drop(ctx context.Context, sess *session.Session, ns Namespace) error {
	if err := ns.validate(); err != nil {
		return merr.WrapConfigError(err, "operation: invalid namespace")
	}

	conn, release, err := sess.Connection(ctx, selector.Write())
	if err != nil {
		return err
	}
	defer release()

	_, err = conn.RunCommand(ctx, ns.DB, bson.D{{Name: "drop", Value: ns.Collection}})
	if err == nil {
		return nil
	}
	if cf, ok := err.(*merr.CommandFailure); ok && cf.IsNamespaceNotFound() {
		return nil
	}
	return err
}
