package wiremessage

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// QueryFlag are the bits of an OP_QUERY message's flags field.
type QueryFlag int32

// QueryFlag bits, per the wire protocol.
const (
	_ QueryFlag = 1 << iota
	TailableCursor
	SlaveOK
	OplogReplay
	NoCursorTimeout
	AwaitData
	Exhaust
	Partial
)

// Query is OP_QUERY: used both for collection queries and (with
// FullCollectionName == "<db>.$cmd") for admin commands, per spec.md
// §4.9.
type Query struct {
	RequestID            int32
	Flags                QueryFlag
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                interface{}
	ReturnFieldsSelector interface{}
}

// Append serializes q onto b, returning the extended slice.
func (q Query) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: q.RequestID, OpCode: OpQuery})
	b = appendInt32(b, int32(q.Flags))
	b = appendCString(b, q.FullCollectionName)
	b = appendInt32(b, q.NumberToSkip)
	b = appendInt32(b, q.NumberToReturn)

	doc, err := bson.Marshal(q.Query)
	if err != nil {
		return nil, fmt.Errorf("wiremessage: marshal query: %w", err)
	}
	b = append(b, doc...)

	if q.ReturnFieldsSelector != nil {
		sel, err := bson.Marshal(q.ReturnFieldsSelector)
		if err != nil {
			return nil, fmt.Errorf("wiremessage: marshal projection: %w", err)
		}
		b = append(b, sel...)
	}

	SetMessageLength(b, start)
	return b, nil
}
