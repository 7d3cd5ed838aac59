package wiremessage

// KillCursors is OP_KILL_CURSORS: tells the server to discard one or
// more server-side cursors, per spec.md §4.9.
type KillCursors struct {
	RequestID  int32
	CursorIDs  []int64
}

// Append serializes k onto b.
func (k KillCursors) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = AppendHeader(b, Header{RequestID: k.RequestID, OpCode: OpKillCursors})
	b = appendInt32(b, 0) // reserved
	b = appendInt32(b, int32(len(k.CursorIDs)))
	for _, id := range k.CursorIDs {
		b = appendInt64(b, id)
	}
	SetMessageLength(b, start)
	return b, nil
}
