package operation

import (
	"github.com/mongodb/mongo-go-driver-core/merr"
	"gopkg.in/mgo.v2/bson"
)

// checkWriteConcernError inspects a getLastError response for the
// failure shapes spec.md §4.10 distinguishes: a non-empty "err" is a
// CommandFailure (classified further as DuplicateKeyError by its
// code), while "wnote"/"wtimeout" with no "err" is a WriteConcernError
// — the write itself succeeded, only the requested acknowledgement
// was not met.
func checkWriteConcernError(resp map[string]interface{}) error {
	if errMsg, _ := resp["err"].(string); errMsg != "" {
		return merr.NewCommandFailure(bson.M(resp))
	}
	if wnote, ok := resp["wnote"].(string); ok && wnote != "" {
		return &merr.WriteConcernError{Message: wnote}
	}
	if timedOut, _ := resp["wtimeout"].(bool); timedOut {
		return &merr.WriteConcernError{Message: "wtimeout"}
	}
	return nil
}

// int32Field reads an integer-shaped BSON value (any of the wire
// encodings a getLastError response may use for "n") as an int32.
func int32Field(v interface{}) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	case int64:
		return int32(n)
	case float64:
		return int32(n)
	default:
		return 0
	}
}

// documentField asserts a nested-document field to bson.M. Values
// gopkg.in/mgo.v2/bson decodes into an interface{} as a nested
// document come back as the named type bson.M, not the structurally
// identical map[string]interface{} — the two do not satisfy the same
// type assertion, so this must assert to bson.M specifically.
func documentField(resp map[string]interface{}, key string) (bson.M, bool) {
	doc, ok := resp[key].(bson.M)
	return doc, ok
}
