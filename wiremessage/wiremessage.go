// Package wiremessage frames the OP_QUERY/INSERT/UPDATE/DELETE/
// GET_MORE/KILL_CURSORS/REPLY messages of spec.md §4.2, grounded on
// core/wiremessage/*.go and core/msg/message_reply.go, ported from
// bson.Reader to gopkg.in/mgo.v2/bson document values.
package wiremessage

import (
	"encoding/binary"
	"fmt"
)

// OpCode identifies the kind of a wire-protocol message body, per
// spec.md §4.2.
type OpCode int32

// Supported opcodes.
const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "OP_REPLY"
	case OpUpdate:
		return "OP_UPDATE"
	case OpInsert:
		return "OP_INSERT"
	case OpQuery:
		return "OP_QUERY"
	case OpGetMore:
		return "OP_GET_MORE"
	case OpDelete:
		return "OP_DELETE"
	case OpKillCursors:
		return "OP_KILL_CURSORS"
	default:
		return fmt.Sprintf("OpCode(%d)", int32(c))
	}
}

// HeaderLen is the fixed 16-byte {length, requestId, responseTo,
// opCode} header every frame carries, per spec.md §4.2.
const HeaderLen = 16

// Header is the common little-endian frame header.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32 // 0 for a request that is not a reply
	OpCode        OpCode
}

// AppendHeader appends the header to b in wire order.
func AppendHeader(b []byte, h Header) []byte {
	b = appendInt32(b, h.MessageLength)
	b = appendInt32(b, h.RequestID)
	b = appendInt32(b, h.ResponseTo)
	b = appendInt32(b, int32(h.OpCode))
	return b
}

// ReadHeader reads a Header from the first HeaderLen bytes of b.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("wiremessage: header requires %d bytes, got %d", HeaderLen, len(b))
	}
	return Header{
		MessageLength: readInt32(b, 0),
		RequestID:     readInt32(b, 4),
		ResponseTo:    readInt32(b, 8),
		OpCode:        OpCode(readInt32(b, 12)),
	}, nil
}

// SetMessageLength patches the length field of an already-appended
// frame starting at offset start in b.
func SetMessageLength(b []byte, start int) {
	n := int32(len(b) - start)
	binary.LittleEndian.PutUint32(b[start:start+4], uint32(n))
}

func appendInt32(b []byte, v int32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendInt64(b []byte, v int64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func appendCString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}

func readInt32(b []byte, pos int) int32 {
	return int32(binary.LittleEndian.Uint32(b[pos : pos+4]))
}

func readInt64(b []byte, pos int) int64 {
	return int64(binary.LittleEndian.Uint64(b[pos : pos+8]))
}

func readCString(b []byte, pos int) (string, int, error) {
	for i := pos; i < len(b); i++ {
		if b[i] == 0 {
			return string(b[pos:i]), i + 1, nil
		}
	}
	return "", pos, fmt.Errorf("wiremessage: unterminated cstring")
}
