// Package buffer provides pooled byte buffers for wire I/O, following
// the "// TODO: use a buffer pool" comment in
// core/msg/codec_wireprotocol.go's Decode.
package buffer

import (
	"bytes"
	"sync"
)

var pool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// Get returns an empty *bytes.Buffer from the pool.
func Get() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

// Put resets buf and returns it to the pool. Callers must not retain
// buf after calling Put.
func Put(buf *bytes.Buffer) {
	buf.Reset()
	pool.Put(buf)
}
