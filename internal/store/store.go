package store

import (
	"context"

	"github.com/adaptive-alerting/detector-registry/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Detectors() Detectors
}

// Detectors is the repository port for detector records: by-UUID primary
// access plus the temporal range queries the scheduler-facing operations
// need. Temporal predicates compare canonical UTC-date-strings, which is
// sound because the encoding is lexicographically monotone. Sort order of
// list results is unspecified.
type Detectors interface {
	// Save upserts the full record keyed by uuid. The record's Version field
	// carries the optimistic-concurrency check: zero inserts, non-zero must
	// match the stored version or the save fails with model.ErrConflict.
	// The returned record carries the advanced version.
	Save(ctx context.Context, d *model.Detector) (*model.Detector, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Detector, error)
	FindByCreatedBy(ctx context.Context, user string) ([]*model.Detector, error)
	// FindUpdatedAfter returns records with meta.dateLastUpdated > date.
	FindUpdatedAfter(ctx context.Context, date string) ([]*model.Detector, error)
	// FindAccessedBefore returns records with meta.dateLastAccessed < date.
	FindAccessedBefore(ctx context.Context, date string) ([]*model.Detector, error)
	// FindTrainingDueBefore returns records whose
	// detectorConfig.trainingMetaData.dateTrainingNextRun < date.
	FindTrainingDueBefore(ctx context.Context, date string) ([]*model.Detector, error)
	// DeleteByUUID is idempotent; deleting an absent record is not an error.
	DeleteByUUID(ctx context.Context, uuid string) error
}
