package operation

import (
	"context"

	"github.com/mongodb/mongo-go-driver-core/selector"
	"github.com/mongodb/mongo-go-driver-core/session"
)

// RunCommand runs an arbitrary admin/database command against a
// server matching sel, completing the full request flow spec.md §2
// diagrams: Session asks the Cluster for a server, checks out a
// Connection, and RunCommand serializes/sends/decodes the command.
// Pass nil for sel to require a server able to take writes
// (selector.Write()); administrative commands that tolerate any
// server, e.g. those issued against a secondary, should pass
// selector.ReadPref(readpref.Nearest()) explicitly.
func RunCommand(ctx context.Context, sess *session.Session, db string, cmd interface{}, sel selector.Func) (map[string]interface{}, error) {
	if sel == nil {
		sel = selector.Write()
	}

	conn, release, err := sess.Connection(ctx, sel)
	if err != nil {
		return nil, err
	}
	defer release()

	return conn.RunCommand(ctx, db, cmd)
}
