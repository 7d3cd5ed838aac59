package operation

import (
	"context"
	"fmt"

	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
	"gopkg.in/mgo.v2/bson"
)

// FindAndModifyOptions configures the findandmodify command, per
// spec.md §4.9.
type FindAndModifyOptions struct {
	Sort   interface{}
	Fields interface{}
	New    bool
	Upsert bool
}

// findAndModify runs the shared findandmodify command document,
// varying only the "update"/"remove" field between FindAndReplace and
// FindAndRemove, per spec.md §4.9's "Sent as OP_QUERY on <db>.$cmd
// with numberToReturn=-1" (handled by connection.RunCommand, which
// already builds exactly that query).
func findAndModify(ctx context.Context, sess *session.Session, ns Namespace, query interface{}, opts FindAndModifyOptions, mutation bson.DocElem) (bson.M, error) {
	if err := ns.validate(); err != nil {
		return nil, merr.WrapConfigError(err, "operation: invalid namespace")
	}

	cmd := bson.D{{Name: "findandmodify", Value: ns.Collection}}
	if query != nil {
		cmd = append(cmd, bson.DocElem{Name: "query", Value: query})
	}
	if opts.Sort != nil {
		cmd = append(cmd, bson.DocElem{Name: "sort", Value: opts.Sort})
	}
	if opts.Fields != nil {
		cmd = append(cmd, bson.DocElem{Name: "fields", Value: opts.Fields})
	}
	if opts.New {
		cmd = append(cmd, bson.DocElem{Name: "new", Value: true})
	}
	if opts.Upsert {
		cmd = append(cmd, bson.DocElem{Name: "upsert", Value: true})
	}
	cmd = append(cmd, mutation)

	conn, release, err := sess.Connection(ctx, selector.Write())
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := conn.RunCommand(ctx, ns.DB, cmd)
	if err != nil {
		return nil, err
	}
	value, _ := documentField(resp, "value")
	return value, nil
}

// FindAndReplace runs findandmodify with an update document, rejecting
// replacement documents that carry an update-operator key client-side
// (no server round trip wasted on a request the server would also
// reject), per spec.md §4.9's "FindAndReplace rejects any replacement
// document whose top-level key starts with $".
//
// Grounded on original_source's FindAndReplace.java (the
// "update": replacement command shape) and
// FindAndReplaceValidator.java (the leading-"$"-key rejection).
func FindAndReplace(ctx context.Context, sess *session.Session, ns Namespace, query, replacement interface{}, opts FindAndModifyOptions) (bson.M, error) {
	if err := validateReplacementDocument(replacement); err != nil {
		return nil, err
	}
	return findAndModify(ctx, sess, ns, query, opts, bson.DocElem{Name: "update", Value: replacement})
}

// FindAndRemove runs findandmodify with remove:true, rejecting
// opts.Upsert client-side, per spec.md §4.9's "FindAndRemove rejects
// any attempt to set upsert".
//
// Grounded on original_source's FindAndRemove.java, whose upsert(bool)
// override throws UnsupportedOperationException unconditionally.
func FindAndRemove(ctx context.Context, sess *session.Session, ns Namespace, query interface{}, opts FindAndModifyOptions) (bson.M, error) {
	if opts.Upsert {
		return nil, merr.NewConfigError("can't upsert a remove")
	}
	return findAndModify(ctx, sess, ns, query, opts, bson.DocElem{Name: "remove", Value: true})
}

// validateReplacementDocument rejects a replacement whose top-level
// key starts with "$" — such a document is an update-operator
// document, not a replacement, and the server would reject it anyway.
func validateReplacementDocument(replacement interface{}) error {
	switch doc := replacement.(type) {
	case bson.M:
		for k := range doc {
			if len(k) > 0 && k[0] == '$' {
				return merr.NewConfigError(fmt.Sprintf("can't use update operators (beginning with '$') in a find-and-replace operation (bad key: %q)", k))
			}
		}
	case bson.D:
		for _, e := range doc {
			if len(e.Name) > 0 && e.Name[0] == '$' {
				return merr.NewConfigError(fmt.Sprintf("can't use update operators (beginning with '$') in a find-and-replace operation (bad key: %q)", e.Name))
			}
		}
	}
	return nil
}
