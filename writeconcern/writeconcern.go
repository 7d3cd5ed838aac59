// Package writeconcern describes the durability contract requested for
// a write operation, per spec.md §3/§4.9. Adapted from
// core/writeconcern/writeconcern.go, ported from bsonx.Elem to
// gopkg.in/mgo.v2/bson to match this module's wire codec.
package writeconcern

import (
	"time"

	"gopkg.in/mgo.v2/bson"
)

// WriteConcern describes the level of acknowledgement requested for
// write operations.
type WriteConcern struct {
	w        interface{}
	j        bool
	wTimeout time.Duration
}

// Option configures a WriteConcern under construction.
type Option func(*WriteConcern)

// New builds a WriteConcern from options. With no options, the result
// is the default ACKNOWLEDGED write concern (spec.md §3).
func New(options ...Option) *WriteConcern {
	wc := &WriteConcern{}
	for _, opt := range options {
		opt(wc)
	}
	return wc
}

// W requests acknowledgement from w mongod instances. w=0 is
// UNACKNOWLEDGED.
func W(w int) Option {
	return func(wc *WriteConcern) { wc.w = w }
}

// WMajority requests acknowledgement from a majority of the replica set.
func WMajority() Option {
	return func(wc *WriteConcern) { wc.w = "majority" }
}

// WTag requests acknowledgement from members satisfying a custom
// write-concern tag, or any non-numeric "w" value from a URI (e.g.
// "majority").
func WTag(tag string) Option {
	return func(wc *WriteConcern) { wc.w = tag }
}

// J requests acknowledgement that the write has been committed to the
// journal.
func J(j bool) Option {
	return func(wc *WriteConcern) { wc.j = j }
}

// WTimeout bounds how long the server waits for the requested
// acknowledgement before reporting a write concern error.
func WTimeout(d time.Duration) Option {
	return func(wc *WriteConcern) { wc.wTimeout = d }
}

// W returns the configured w value (nil, an int, or a string tag) and
// whether one was set.
func (wc *WriteConcern) W() (interface{}, bool) {
	if wc == nil {
		return nil, false
	}
	return wc.w, wc.w != nil
}

// J reports whether journal acknowledgement was requested.
func (wc *WriteConcern) J() bool {
	return wc != nil && wc.j
}

// WTimeout returns the configured write-concern timeout.
func (wc *WriteConcern) WTimeout() time.Duration {
	if wc == nil {
		return 0
	}
	return wc.wTimeout
}

// Acknowledged reports whether a write with this concern is
// acknowledged: nil (the unset zero value via (*WriteConcern)(nil)) and
// j=true are always acknowledged; w=0 is the only unacknowledged case.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil || wc.j {
		return true
	}
	if n, ok := wc.w.(int); ok && n == 0 {
		return false
	}
	return true
}

// IsValid reports that w=0 and j=true are not both set, per spec.md's
// "fsync/j must be consistent with w" hygiene check (mirrors
// core/writeconcern's ErrInconsistent).
func (wc *WriteConcern) IsValid() bool {
	if !wc.j {
		return true
	}
	n, ok := wc.w.(int)
	return !ok || n != 0
}

// GetLastErrorCommand builds the {getLastError:1, w, wtimeout, j}
// command document this write concern implies, per spec.md §4.9.
func (wc *WriteConcern) GetLastErrorCommand() bson.D {
	cmd := bson.D{{Name: "getLastError", Value: 1}}
	if wc == nil {
		return cmd
	}
	if wc.w != nil {
		cmd = append(cmd, bson.DocElem{Name: "w", Value: wc.w})
	}
	if wc.wTimeout > 0 {
		cmd = append(cmd, bson.DocElem{Name: "wtimeout", Value: int64(wc.wTimeout / time.Millisecond)})
	}
	if wc.j {
		cmd = append(cmd, bson.DocElem{Name: "j", Value: true})
	}
	return cmd
}

// Acknowledged is a package-level convenience mirroring
// core/writeconcern's AckWrite: nil is acknowledged.
func Acknowledged(wc *WriteConcern) bool {
	return wc == nil || wc.Acknowledged()
}
