package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adaptive-alerting/detector-registry/internal/clock"
	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/opctx"
	"github.com/adaptive-alerting/detector-registry/internal/store"
	"github.com/adaptive-alerting/detector-registry/internal/validate"
)

// Service orchestrates detector lifecycle writes and temporal queries:
// validation, meta and config derivation, then persistence through the
// repository port.
//
// There is no in-process locking between operations on the same detector;
// consistency is delegated to the store, whose optimistic version check
// fails a stale save with model.ErrConflict. Callers should treat mutating
// operations as at-least-once and retry on conflict if they need to.
type Service struct {
	store store.Store
	clk   clock.Clock
	meta  MetaBuilder
	log   zerolog.Logger
}

func NewService(st store.Store, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{store: st, clk: clk, meta: NewMetaBuilder(clk), log: log}
}

// CreateDetector assigns a fresh random UUID, derives the initial meta and
// persists the record. The caller must not supply a UUID.
func (s *Service) CreateDetector(ctx context.Context, d *model.Detector) (uuid.UUID, error) {
	if d == nil {
		return uuid.Nil, fmt.Errorf("%w: detector must not be nil", model.ErrInvariant)
	}
	if d.UUID != uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: detector.uuid must be unset on create", model.ErrInvariant)
	}

	id := uuid.New()
	ctx = opctx.WithDetectorUUID(ctx, id.String())

	d.UUID = id
	d.ID = id.String()
	createdBy := ""
	if d.Meta != nil {
		createdBy = d.Meta.CreatedBy
	}
	d.Meta = s.meta.NewDetectorMeta(createdBy)

	if err := validate.Detector(d); err != nil {
		return uuid.Nil, err
	}
	if err := s.save(ctx, d); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// FindByUUID returns the record or model.ErrNotFound.
func (s *Service) FindByUUID(ctx context.Context, uuidStr string) (*model.Detector, error) {
	return s.store.Detectors().GetByUUID(ctx, uuidStr)
}

// FindByCreatedBy returns every detector created by user. An empty result
// fails with model.ErrNotFound, preserving the legacy contract that
// conflates an unknown user with a user owning zero detectors.
func (s *Service) FindByCreatedBy(ctx context.Context, user string) ([]*model.Detector, error) {
	detectors, err := s.store.Detectors().FindByCreatedBy(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(detectors) == 0 {
		return nil, fmt.Errorf("%w: no detectors for user %q", model.ErrNotFound, user)
	}
	return detectors, nil
}

// ToggleDetector sets the enabled flag and re-persists the record.
func (s *Service) ToggleDetector(ctx context.Context, uuidStr string, enabled bool) error {
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)
	d, err := s.store.Detectors().GetByUUID(ctx, uuidStr)
	if err != nil {
		return err
	}
	d.Enabled = enabled
	if err := validate.Detector(d); err != nil {
		return err
	}
	return s.save(ctx, d)
}

// TrustDetector sets the trusted flag and re-persists the record.
func (s *Service) TrustDetector(ctx context.Context, uuidStr string, trusted bool) error {
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)
	d, err := s.store.Detectors().GetByUUID(ctx, uuidStr)
	if err != nil {
		return err
	}
	d.Trusted = trusted
	if err := validate.Detector(d); err != nil {
		return err
	}
	return s.save(ctx, d)
}

// GetLastUpdatedDetectors returns every detector whose meta.dateLastUpdated
// falls within the past intervalSeconds.
func (s *Service) GetLastUpdatedDetectors(ctx context.Context, intervalSeconds int64) ([]*model.Detector, error) {
	from := clock.UTCDateString(s.clk.Now().Add(-time.Duration(intervalSeconds) * time.Second))
	return s.store.Detectors().FindUpdatedAfter(ctx, from)
}

// GetLastUsedDetectors returns stale detectors: those not accessed in the
// past noOfDays days.
func (s *Service) GetLastUsedDetectors(ctx context.Context, noOfDays int) ([]*model.Detector, error) {
	from := clock.UTCDateString(s.clk.Now().Add(-time.Duration(noOfDays) * 24 * time.Hour))
	return s.store.Detectors().FindAccessedBefore(ctx, from)
}

// GetDetectorsToBeTrained returns detectors whose next training run is due
// before the given epoch-millisecond instant.
func (s *Service) GetDetectorsToBeTrained(ctx context.Context, timestampMs int64) ([]*model.Detector, error) {
	return s.store.Detectors().FindTrainingDueBefore(ctx, clock.EpochMillisDateString(timestampMs))
}

// UpdateDetector merges the partial's config into the stored record,
// advances dateLastUpdated and re-persists. Ownership fields (createdBy,
// dateCreated) always come from the stored record.
func (s *Service) UpdateDetector(ctx context.Context, uuidStr string, partial *model.Detector) error {
	if partial == nil {
		return fmt.Errorf("%w: detector must not be nil", model.ErrInvariant)
	}
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)

	d, err := s.store.Detectors().GetByUUID(ctx, uuidStr)
	if err != nil {
		return err
	}
	d.DetectorConfig = MergeConfig(d.DetectorConfig, partial.DetectorConfig)
	d.Meta = s.meta.LastUpdatedDetectorMeta(d.Meta)
	if err := validate.Detector(d); err != nil {
		return err
	}
	return s.save(ctx, d)
}

// UpdateDetectorLastUsed advances dateLastAccessed, leaving dateLastUpdated
// untouched.
func (s *Service) UpdateDetectorLastUsed(ctx context.Context, uuidStr string) error {
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)
	d, err := s.store.Detectors().GetByUUID(ctx, uuidStr)
	if err != nil {
		return err
	}
	d.Meta = s.meta.LastUsedDetectorMeta(d.Meta)
	if err := validate.Detector(d); err != nil {
		return err
	}
	return s.save(ctx, d)
}

// UpdateDetectorTrainingTime schedules the next training run, preserving
// the rest of the training block. No externally supplied data enters, so
// the validator is not rerun.
func (s *Service) UpdateDetectorTrainingTime(ctx context.Context, uuidStr string, nextRunEpochMs int64) error {
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)
	d, err := s.store.Detectors().GetByUUID(ctx, uuidStr)
	if err != nil {
		return err
	}
	if d.DetectorConfig == nil {
		d.DetectorConfig = &model.DetectorConfig{}
	}
	tm := model.TrainingMetaData{}
	if d.DetectorConfig.TrainingMetaData != nil {
		tm = *d.DetectorConfig.TrainingMetaData
	}
	tm.DateTrainingNextRun = clock.EpochMillisDateString(nextRunEpochMs)
	d.DetectorConfig.TrainingMetaData = &tm
	return s.save(ctx, d)
}

// DeleteDetector removes the record; deleting an absent record succeeds.
func (s *Service) DeleteDetector(ctx context.Context, uuidStr string) error {
	ctx = opctx.WithDetectorUUID(ctx, uuidStr)
	return s.store.Detectors().DeleteByUUID(ctx, uuidStr)
}

func (s *Service) save(ctx context.Context, d *model.Detector) error {
	saved, err := s.store.Detectors().Save(ctx, d)
	if err != nil {
		log := opctx.Logger(ctx, s.log)
		log.Error().Stack().Err(err).Msg("detector save failed")
		return err
	}
	d.Version = saved.Version
	return nil
}
