package wiremessage

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// InsertFlag are the bits of an OP_INSERT message's flags field.
type InsertFlag int32

// ContinueOnError causes the server to keep inserting remaining
// documents in the batch even after one fails.
const ContinueOnError InsertFlag = 1

// Insert is OP_INSERT: a batch of documents to insert into one
// namespace. Batches are pre-split by the caller so that no frame
// exceeds maxMessageSize and no batch exceeds maxWriteBatchSize, per
// spec.md §4.2.
type Insert struct {
	RequestID          int32
	Flags              InsertFlag
	FullCollectionName string
	Documents          []interface{}
}

// Append serializes i onto b.
func (i Insert) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: i.RequestID, OpCode: OpInsert})
	b = appendInt32(b, int32(i.Flags))
	b = appendCString(b, i.FullCollectionName)

	for _, d := range i.Documents {
		doc, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("wiremessage: marshal insert document: %w", err)
		}
		b = append(b, doc...)
	}

	SetMessageLength(b, start)
	return b, nil
}
