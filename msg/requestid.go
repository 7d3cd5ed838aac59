// Package msg is the wire codec: little-endian frame encode/decode,
// requestId/responseTo correlation, and the monotonic requestId
// counter, grounded on core/msg/codec.go and
// core/msg/codec_wireprotocol.go.
package msg

import "sync/atomic"

var globalRequestID int32

// NextRequestID returns the next process-wide monotonically
// increasing requestId. spec.md §3 requires only per-connection
// uniqueness within a connection's lifetime; a process-wide counter
// is a stronger guarantee that trivially satisfies it.
func NextRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 1)
}
