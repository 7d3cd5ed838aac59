package msg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mongodb/mongo-go-driver-core/buffer"
	"github.com/mongodb/mongo-go-driver-core/wiremessage"
)

// Appendable is a wire message that knows how to serialize itself
// (every wiremessage request type).
type Appendable interface {
	Append([]byte) ([]byte, error)
}

// WriteMessage writes a single framed request to w, enforcing
// maxMessageSize per spec.md §4.2.
func WriteMessage(w io.Writer, m Appendable, maxMessageSize uint32) error {
	buf := buffer.Get()
	defer buffer.Put(buf)

	b, err := m.Append(buf.Bytes()[:0])
	if err != nil {
		return err
	}
	// Keep frame-sized capacity on the pooled buffer so the next
	// WriteMessage appends into it instead of allocating.
	buf.Grow(len(b))
	if maxMessageSize > 0 && uint32(len(b)) > maxMessageSize {
		return fmt.Errorf("msg: message of %d bytes exceeds maxMessageSize %d", len(b), maxMessageSize)
	}

	_, err = w.Write(b)
	return err
}

// ReadReply reads one length-prefixed frame from r and parses it as
// an OP_REPLY, per spec.md §4.2.
func ReadReply(r io.Reader) (wiremessage.Reply, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return wiremessage.Reply{}, fmt.Errorf("msg: read message length: %w", err)
	}
	length := int32(binary.LittleEndian.Uint32(lengthBytes[:]))
	if length < wiremessage.HeaderLen {
		return wiremessage.Reply{}, fmt.Errorf("msg: invalid message length %d", length)
	}

	b := make([]byte, length)
	copy(b, lengthBytes[:])
	if _, err := io.ReadFull(r, b[4:]); err != nil {
		return wiremessage.Reply{}, fmt.Errorf("msg: read message body: %w", err)
	}

	return wiremessage.ParseReply(b)
}
