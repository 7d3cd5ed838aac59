package wiremessage

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// UpdateFlag are the bits of an OP_UPDATE message's flags field.
type UpdateFlag int32

// UpdateFlag bits, per spec.md §4.9 ("every update/delete carries a
// flags byte").
const (
	Upsert UpdateFlag = 1 << iota
	MultiUpdate
)

// Update is OP_UPDATE.
type Update struct {
	RequestID          int32
	FullCollectionName string
	Flags              UpdateFlag
	Selector           interface{}
	Update             interface{}
}

// Append serializes u onto b.
func (u Update) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: u.RequestID, OpCode: OpUpdate})
	b = appendInt32(b, 0) // reserved
	b = appendCString(b, u.FullCollectionName)
	b = appendInt32(b, int32(u.Flags))

	sel, err := bson.Marshal(u.Selector)
	if err != nil {
		return nil, fmt.Errorf("wiremessage: marshal update selector: %w", err)
	}
	b = append(b, sel...)

	upd, err := bson.Marshal(u.Update)
	if err != nil {
		return nil, fmt.Errorf("wiremessage: marshal update document: %w", err)
	}
	b = append(b, upd...)

	SetMessageLength(b, start)
	return b, nil
}
