package wiremessage

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// DeleteFlag are the bits of an OP_DELETE message's flags field.
type DeleteFlag int32

// SingleRemove limits the delete to at most one matching document.
const SingleRemove DeleteFlag = 1

// Delete is OP_DELETE.
type Delete struct {
	RequestID          int32
	FullCollectionName string
	Flags              DeleteFlag
	Selector           interface{}
}

// Append serializes d onto b.
func (d Delete) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: d.RequestID, OpCode: OpDelete})
	b = appendInt32(b, 0) // reserved
	b = appendCString(b, d.FullCollectionName)
	b = appendInt32(b, int32(d.Flags))

	sel, err := bson.Marshal(d.Selector)
	if err != nil {
		return nil, fmt.Errorf("wiremessage: marshal delete selector: %w", err)
	}
	b = append(b, sel...)

	SetMessageLength(b, start)
	return b, nil
}
