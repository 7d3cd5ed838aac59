package wiremessage

// GetMore is OP_GET_MORE: fetches the next batch from a server-side
// cursor, per spec.md §4.9.
type GetMore struct {
	RequestID          int32
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// Append serializes g onto b.
func (g GetMore) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: g.RequestID, OpCode: OpGetMore})
	b = appendInt32(b, 0) // reserved
	b = appendCString(b, g.FullCollectionName)
	b = appendInt32(b, g.NumberToReturn)
	b = appendInt64(b, g.CursorID)
	SetMessageLength(b, start)
	return b, nil
}
