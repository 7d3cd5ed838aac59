package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/operation"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
	"github.com/mongodb/mongo-go-driver-core/writeconcern"
)

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInsert_Acknowledged(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		if cmd["getLastError"] != nil {
			return one(bson.M{"n": 3, "ok": 1})
		}
		t.Fatalf("unexpected command on db %q: %v", db, cmd)
		return fakeReply{}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	docs := []interface{}{
		bson.M{"_id": 1},
		bson.M{"_id": 2},
		bson.M{"_id": 3},
	}

	result, err := operation.Insert(withTimeout(t), sess, ns, docs, writeconcern.New())
	require.NoError(t, err)
	assert.Equal(t, 3, result.N)
}

func TestInsert_Unacknowledged(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		t.Fatalf("unacknowledged insert should not round-trip a command: got %v on %q", cmd, db)
		return fakeReply{}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	docs := []interface{}{bson.M{"_id": 1}}

	result, err := operation.Insert(withTimeout(t), sess, ns, docs, writeconcern.New(writeconcern.W(0)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.N)
}

func TestInsert_InvalidNamespace(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		t.Fatal("should not dial out for an invalid namespace")
		return fakeReply{}
	})

	_, err := operation.Insert(withTimeout(t), sess, operation.NewNamespace("", "widgets"), nil, writeconcern.New())
	require.Error(t, err)
}

func TestUpdate_Acknowledged(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		require.NotNil(t, cmd["getLastError"])
		return one(bson.M{"n": 1, "updatedExisting": true, "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	result, err := operation.Update(withTimeout(t), sess, ns,
		bson.M{"_id": 1}, bson.M{"$set": bson.M{"x": 2}},
		operation.UpdateOptions{}, writeconcern.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.N)
	assert.True(t, result.UpdatedExisting)
}

func TestUpdate_Upsert(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return one(bson.M{"n": 1, "updatedExisting": false, "upserted": 42, "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	result, err := operation.Update(withTimeout(t), sess, ns,
		bson.M{"_id": 1}, bson.M{"$set": bson.M{"x": 2}},
		operation.UpdateOptions{Upsert: true}, writeconcern.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.N)
	assert.False(t, result.UpdatedExisting)
	assert.EqualValues(t, 42, result.UpsertedID)
}

func TestDelete_Acknowledged(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return one(bson.M{"n": 2, "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	result, err := operation.Delete(withTimeout(t), sess, ns, bson.M{"x": 1}, false, writeconcern.New())
	require.NoError(t, err)
	assert.Equal(t, 2, result.N)
}

func TestDelete_WriteConcernError(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return one(bson.M{"n": 0, "err": "timed out waiting for replication", "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	_, err := operation.Delete(withTimeout(t), sess, ns, bson.M{"x": 1}, true, writeconcern.New())
	require.Error(t, err)
}

func TestFind_IteratesAcrossBatchesAndCloses(t *testing.T) {
	getMoreCalls := 0
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		if db == "" {
			getMoreCalls++
			return fakeReply{docs: []bson.M{{"_id": 3}}, cursorID: 0}
		}
		return fakeReply{docs: []bson.M{{"_id": 1}, {"_id": 2}}, cursorID: 99}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	cur, err := operation.Find(withTimeout(t), sess, ns, bson.M{}, operation.FindOptions{BatchSize: 2})
	require.NoError(t, err)

	ctx := withTimeout(t)
	var got []bson.M
	for {
		doc, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, doc)
	}

	require.Len(t, got, 3)
	assert.Equal(t, 1, getMoreCalls)
	require.NoError(t, cur.Close(ctx))
	require.NoError(t, cur.Close(ctx)) // idempotent
}

func TestFind_QueryFailure(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return fakeReply{docs: []bson.M{{"$err": "bad query", "code": 2}}, flags: wiremessage.QueryFailure}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	_, err := operation.Find(withTimeout(t), sess, ns, bson.M{}, operation.FindOptions{})
	require.Error(t, err)
	var cf *merr.CommandFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "bad query", cf.Message())
}

func TestFindAndReplace_Success(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		require.Equal(t, "widgets", cmd["findandmodify"])
		require.NotNil(t, cmd["update"])
		return one(bson.M{"value": bson.M{"_id": 1, "x": 2}, "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	value, err := operation.FindAndReplace(withTimeout(t), sess, ns, bson.M{"_id": 1}, bson.M{"x": 2}, operation.FindAndModifyOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, value["x"])
}

func TestFindAndReplace_RejectsUpdateOperatorKey(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		t.Fatal("client-side validation must reject before any round trip")
		return fakeReply{}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	_, err := operation.FindAndReplace(withTimeout(t), sess, ns, bson.M{"_id": 1}, bson.M{"$set": bson.M{"x": 2}}, operation.FindAndModifyOptions{})
	require.Error(t, err)
	var cfgErr *merr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestFindAndRemove_Success(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		require.Equal(t, true, cmd["remove"])
		return one(bson.M{"value": bson.M{"_id": 1}, "ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	value, err := operation.FindAndRemove(withTimeout(t), sess, ns, bson.M{"_id": 1}, operation.FindAndModifyOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, value["_id"])
}

func TestFindAndRemove_RejectsUpsert(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		t.Fatal("client-side validation must reject before any round trip")
		return fakeReply{}
	})

	ns := operation.NewNamespace("testdb", "widgets")
	_, err := operation.FindAndRemove(withTimeout(t), sess, ns, bson.M{"_id": 1}, operation.FindAndModifyOptions{Upsert: true})
	require.Error(t, err)
}

func TestDrop_Success(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		require.Equal(t, "widgets", cmd["drop"])
		return one(bson.M{"ok": 1})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	require.NoError(t, operation.Drop(withTimeout(t), sess, ns))
}

func TestDrop_SwallowsNamespaceNotFound(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return one(bson.M{"ok": 0, "errmsg": "ns not found"})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	require.NoError(t, operation.Drop(withTimeout(t), sess, ns))
}

func TestDrop_PropagatesOtherCommandFailures(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		return one(bson.M{"ok": 0, "errmsg": "not authorized"})
	})

	ns := operation.NewNamespace("testdb", "widgets")
	err := operation.Drop(withTimeout(t), sess, ns)
	require.Error(t, err)
	var cf *merr.CommandFailure
	require.ErrorAs(t, err, &cf)
}

func TestRunCommand_PassesThrough(t *testing.T) {
	sess := newFakeSession(t, func(db string, cmd bson.M) fakeReply {
		assert.Equal(t, "testdb", db)
		require.NotNil(t, cmd["ping"])
		return one(bson.M{"ok": 1})
	})

	resp, err := operation.RunCommand(withTimeout(t), sess, "testdb", bson.D{{Name: "ping", Value: 1}}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp["ok"])
}
