package readpref

import (
	"time"

	"github.com/mongodb/mongo-go-driver-core/description"
)

// Option configures a ReadPref under construction.
type Option func(*ReadPref)

// WithMaxStaleness sets the maximum replication staleness a secondary
// may have and still be eligible for selection.
func WithMaxStaleness(d time.Duration) Option {
	return func(rp *ReadPref) {
		rp.maxStaleness = d
		rp.maxStalenessSet = true
	}
}

// WithTags sets a single tag set to match against candidate servers.
func WithTags(tags ...string) Option {
	ts := description.TagSet{}
	for i := 0; i+1 < len(tags); i += 2 {
		ts[tags[i]] = tags[i+1]
	}
	return WithTagSets(ts)
}

// WithTagSets sets the ordered tag-set list to match against candidate
// servers, per spec.md §4.1's readPreferenceTags ordering.
func WithTagSets(tagSets ...description.TagSet) Option {
	return func(rp *ReadPref) {
		rp.tagSets = description.TagSetList(tagSets)
	}
}
