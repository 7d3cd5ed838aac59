package msg

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// SplitInsertBatches partitions docs into OP_INSERT-sized batches so
// that no frame exceeds maxMessageSize and no batch exceeds
// maxWriteBatchSize, per spec.md §4.2 ("Insert batches must be split
// ... splits are performed by the write-message serializer and
// reported back so the operation can continue the next batch without
// re-buffering").
func SplitInsertBatches(docs []interface{}, maxMessageSize uint32, maxWriteBatchSize uint16) ([][]interface{}, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if maxWriteBatchSize == 0 {
		maxWriteBatchSize = 1000
	}

	const frameOverhead = wireMessageOverhead

	var batches [][]interface{}
	var cur []interface{}
	var curSize uint32 = frameOverhead

	for _, d := range docs {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("msg: marshal insert document: %w", err)
		}
		docSize := uint32(len(raw))
		if maxMessageSize > 0 && docSize+frameOverhead > maxMessageSize {
			return nil, fmt.Errorf("msg: document of %d bytes exceeds maxMessageSize %d", docSize, maxMessageSize)
		}

		exceedsSize := maxMessageSize > 0 && curSize+docSize > maxMessageSize
		exceedsCount := len(cur) >= int(maxWriteBatchSize)
		if len(cur) > 0 && (exceedsSize || exceedsCount) {
			batches = append(batches, cur)
			cur = nil
			curSize = frameOverhead
		}

		cur = append(cur, d)
		curSize += docSize
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}

	return batches, nil
}

// wireMessageOverhead approximates the OP_INSERT header (16-byte
// frame header + 4-byte flags + collection-name cstring) so batch
// splitting stays safely under maxMessageSize without re-serializing
// the whole frame to measure it exactly.
const wireMessageOverhead = 16 + 4 + 128
