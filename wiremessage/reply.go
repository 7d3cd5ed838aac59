package wiremessage

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// ReplyFlag are the bits of an OP_REPLY message's responseFlags field.
type ReplyFlag int32

// ReplyFlag bits of interest, per spec.md §4.2.
const (
	CursorNotFound ReplyFlag = 1 << iota
	QueryFailure
	ShardConfigStale
	AwaitCapable
)

func (f ReplyFlag) has(bit ReplyFlag) bool { return f&bit == bit }

// Reply is OP_REPLY, the only server-to-client message in this
// protocol.
type Reply struct {
	Header         Header
	ResponseFlags  ReplyFlag
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	DocumentBytes  []byte // concatenated raw BSON documents
}

// CursorNotFound reports whether the server could not find the cursor
// this getMore/killCursors addressed.
func (r Reply) CursorNotFound() bool { return r.ResponseFlags.has(CursorNotFound) }

// QueryFailure reports whether the reply's single document is an
// error document, per spec.md §4.2.
func (r Reply) QueryFailure() bool { return r.ResponseFlags.has(QueryFailure) }

// Documents unmarshals each returned document into a bson.M.
func (r Reply) Documents() ([]bson.M, error) {
	docs := make([]bson.M, 0, r.NumberReturned)
	rest := r.DocumentBytes
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, fmt.Errorf("wiremessage: truncated document in reply")
		}
		n := int(readInt32(rest, 0))
		if n <= 0 || n > len(rest) {
			return nil, fmt.Errorf("wiremessage: invalid document length %d in reply", n)
		}
		var doc bson.M
		if err := bson.Unmarshal(rest[:n], &doc); err != nil {
			return nil, fmt.Errorf("wiremessage: unmarshal reply document: %w", err)
		}
		docs = append(docs, doc)
		rest = rest[n:]
	}
	return docs, nil
}

// ParseReply decodes a full OP_REPLY frame (header included) from b.
func ParseReply(b []byte) (Reply, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return Reply{}, err
	}
	if h.OpCode != OpReply {
		return Reply{}, fmt.Errorf("wiremessage: expected OP_REPLY, got %s", h.OpCode)
	}
	if len(b) < HeaderLen+20 {
		return Reply{}, fmt.Errorf("wiremessage: reply frame too short")
	}
	r := Reply{Header: h}
	r.ResponseFlags = ReplyFlag(readInt32(b, HeaderLen))
	r.CursorID = readInt64(b, HeaderLen+4)
	r.StartingFrom = readInt32(b, HeaderLen+12)
	r.NumberReturned = readInt32(b, HeaderLen+16)
	r.DocumentBytes = b[HeaderLen+20:]
	return r, nil
}
