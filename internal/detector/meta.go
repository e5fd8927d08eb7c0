package detector

import (
	"github.com/adaptive-alerting/detector-registry/internal/clock"
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

// MetaBuilder derives the system-maintained meta block for the three
// mutating transitions: create, update and last-used ping. dateCreated
// originates only on create; createdBy is captured on create and preserved
// from the stored record thereafter.
type MetaBuilder struct {
	clk clock.Clock
}

func NewMetaBuilder(clk clock.Clock) MetaBuilder { return MetaBuilder{clk: clk} }

// NewDetectorMeta produces the meta for a freshly created detector. All
// timestamps start at now, which keeps dateLastUpdated and dateLastAccessed
// at or after dateCreated from the first write on.
func (b MetaBuilder) NewDetectorMeta(createdBy string) *model.Meta {
	now := clock.UTCDateString(b.clk.Now())
	return &model.Meta{
		CreatedBy:        createdBy,
		DateCreated:      now,
		DateLastUpdated:  now,
		DateLastAccessed: now,
	}
}

// LastUpdatedDetectorMeta advances dateLastUpdated. Ownership fields come
// exclusively from the stored record, so an update can never rewrite
// createdBy or dateCreated.
func (b MetaBuilder) LastUpdatedDetectorMeta(stored *model.Meta) *model.Meta {
	out := *stored
	out.DateLastUpdated = clock.UTCDateString(b.clk.Now())
	return &out
}

// LastUsedDetectorMeta advances dateLastAccessed only; dateLastUpdated is
// preserved so last-used pings don't count as configuration updates.
func (b MetaBuilder) LastUsedDetectorMeta(stored *model.Meta) *model.Meta {
	out := *stored
	out.DateLastAccessed = clock.UTCDateString(b.clk.Now())
	return &out
}
