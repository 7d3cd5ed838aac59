package readpref

import (
	"fmt"
	"strings"
	"time"

	"github.com/mongodb/mongo-go-driver-core/description"
)

// Primary builds a ReadPref with PrimaryMode; tags are meaningless in
// this mode and are never applied.
func Primary() *ReadPref {
	return newReadPref(PrimaryMode)
}

// PrimaryPreferred builds a ReadPref with PrimaryPreferredMode.
func PrimaryPreferred(opts ...Option) *ReadPref {
	return newReadPref(PrimaryPreferredMode, opts...)
}

// Secondary builds a ReadPref with SecondaryMode.
func Secondary(opts ...Option) *ReadPref {
	return newReadPref(SecondaryMode, opts...)
}

// SecondaryPreferred builds a ReadPref with SecondaryPreferredMode.
func SecondaryPreferred(opts ...Option) *ReadPref {
	return newReadPref(SecondaryPreferredMode, opts...)
}

// Nearest builds a ReadPref with NearestMode.
func Nearest(opts ...Option) *ReadPref {
	return newReadPref(NearestMode, opts...)
}

// New builds a ReadPref with a parsed mode and tag-set list, the shape
// connstring.createReadPreference needs.
func New(mode Mode, tagSets description.TagSetList, opts ...Option) *ReadPref {
	rp := newReadPref(mode, opts...)
	if len(tagSets) > 0 {
		rp.tagSets = tagSets
	}
	return rp
}

func newReadPref(mode Mode, opts ...Option) *ReadPref {
	rp := &ReadPref{mode: mode}
	for _, opt := range opts {
		opt(rp)
	}
	return rp
}

// ReadPref determines which servers are eligible for a read operation,
// per spec.md §3/§4.8.
type ReadPref struct {
	maxStaleness    time.Duration
	maxStalenessSet bool
	mode            Mode
	tagSets         description.TagSetList
}

// ModeFromString parses spec.md §4.1's readPreference enum values.
func ModeFromString(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "primary":
		return PrimaryMode, nil
	case "primarypreferred":
		return PrimaryPreferredMode, nil
	case "secondary":
		return SecondaryMode, nil
	case "secondarypreferred":
		return SecondaryPreferredMode, nil
	case "nearest":
		return NearestMode, nil
	}
	return Mode(0), fmt.Errorf("unknown read preference %q", s)
}

// WithMode builds a bare ReadPref from a mode with no tags.
func WithMode(m Mode) *ReadPref {
	return newReadPref(m)
}

// MaxStaleness returns the configured max staleness and whether one
// was set.
func (r *ReadPref) MaxStaleness() (time.Duration, bool) {
	return r.maxStaleness, r.maxStalenessSet
}

// Mode returns the read preference's mode.
func (r *ReadPref) Mode() Mode {
	if r == nil {
		return PrimaryMode
	}
	return r.mode
}

// TagSets returns the ordered tag-set list to match against candidate
// servers.
func (r *ReadPref) TagSets() description.TagSetList {
	if r == nil {
		return nil
	}
	return r.tagSets
}
