// Package sqlite is the local and test backend for the detector repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS detectors (
    uuid               TEXT PRIMARY KEY,
    enabled            INTEGER NOT NULL DEFAULT 0,
    trusted            INTEGER NOT NULL DEFAULT 0,
    created_by         TEXT NOT NULL DEFAULT '',
    date_created       TEXT NOT NULL,
    date_last_updated  TEXT NOT NULL,
    date_last_accessed TEXT NOT NULL,
    training_next_run  TEXT,
    config             TEXT NOT NULL,
    version            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detectors_created_by ON detectors(created_by);
CREATE INDEX IF NOT EXISTS idx_detectors_last_updated ON detectors(date_last_updated);
CREATE INDEX IF NOT EXISTS idx_detectors_last_accessed ON detectors(date_last_accessed);
CREATE INDEX IF NOT EXISTS idx_detectors_training_next_run ON detectors(training_next_run);
`

// Bootstrap creates the detector table and indexes if they do not exist.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// NewWithDB constructs a SQLite-backed store.Store.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Detectors() store.Detectors { return &detectors{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type detectors struct{ db *sql.DB }

const detectorColumns = `uuid, enabled, trusted, created_by, date_created, date_last_updated, date_last_accessed, config, version`

func (r *detectors) Save(ctx context.Context, d *model.Detector) (*model.Detector, error) {
	row, err := newRecord(d)
	if err != nil {
		return nil, err
	}

	if d.Version == 0 {
		_, err := r.db.ExecContext(ctx, `
            INSERT INTO detectors (uuid, enabled, trusted, created_by, date_created, date_last_updated, date_last_accessed, training_next_run, config, version)
            VALUES (?,?,?,?,?,?,?,?,?,1)
        `, row.uuid, row.enabled, row.trusted, row.createdBy, row.dateCreated, row.dateLastUpdated, row.dateLastAccessed, row.trainingNextRun, row.config)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return nil, fmt.Errorf("%w: detector %s already exists", model.ErrConflict, row.uuid)
			}
			return nil, err
		}
		out := *d
		out.Version = 1
		return &out, nil
	}

	res, err := r.db.ExecContext(ctx, `
        UPDATE detectors
        SET enabled=?, trusted=?, created_by=?, date_created=?, date_last_updated=?, date_last_accessed=?, training_next_run=?, config=?, version=version+1
        WHERE uuid=? AND version=?
    `, row.enabled, row.trusted, row.createdBy, row.dateCreated, row.dateLastUpdated, row.dateLastAccessed, row.trainingNextRun, row.config, row.uuid, d.Version)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM detectors WHERE uuid=?`, row.uuid).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, row.uuid)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: detector %s version %d is stale", model.ErrConflict, row.uuid, d.Version)
	}
	out := *d
	out.Version = d.Version + 1
	return &out, nil
}

func (r *detectors) GetByUUID(ctx context.Context, id string) (*model.Detector, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE uuid=?`, id)
	d, err := scanDetector(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, id)
	}
	return d, err
}

func (r *detectors) FindByCreatedBy(ctx context.Context, user string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE created_by=?`, user)
}

func (r *detectors) FindUpdatedAfter(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE date_last_updated > ?`, date)
}

func (r *detectors) FindAccessedBefore(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE date_last_accessed < ?`, date)
}

func (r *detectors) FindTrainingDueBefore(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE training_next_run IS NOT NULL AND training_next_run < ?`, date)
}

func (r *detectors) DeleteByUUID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM detectors WHERE uuid=?`, id)
	return err
}

func (r *detectors) list(ctx context.Context, query string, args ...interface{}) ([]*model.Detector, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Detector
	for rows.Next() {
		d, err := scanDetector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// record is the column form of a detector. The training next-run is
// extracted into its own column so the due-for-training predicate can run
// in SQL; the full config round-trips through the JSON column.
type record struct {
	uuid             string
	enabled          bool
	trusted          bool
	createdBy        string
	dateCreated      string
	dateLastUpdated  string
	dateLastAccessed string
	trainingNextRun  interface{}
	config           []byte
}

func newRecord(d *model.Detector) (*record, error) {
	cfg, err := json.Marshal(d.DetectorConfig)
	if err != nil {
		return nil, err
	}
	row := &record{uuid: d.UUID.String(), enabled: d.Enabled, trusted: d.Trusted, config: cfg}
	if d.Meta != nil {
		row.createdBy = d.Meta.CreatedBy
		row.dateCreated = d.Meta.DateCreated
		row.dateLastUpdated = d.Meta.DateLastUpdated
		row.dateLastAccessed = d.Meta.DateLastAccessed
	}
	if c := d.DetectorConfig; c != nil && c.TrainingMetaData != nil && c.TrainingMetaData.DateTrainingNextRun != "" {
		row.trainingNextRun = c.TrainingMetaData.DateTrainingNextRun
	}
	return row, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDetector(row rowScanner) (*model.Detector, error) {
	var d model.Detector
	var id string
	var cfg []byte
	meta := &model.Meta{}
	if err := row.Scan(&id, &d.Enabled, &d.Trusted, &meta.CreatedBy, &meta.DateCreated, &meta.DateLastUpdated, &meta.DateLastAccessed, &cfg, &d.Version); err != nil {
		return nil, err
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt detector uuid %q: %w", id, err)
	}
	d.UUID = u
	d.ID = id
	d.Meta = meta
	if len(cfg) > 0 && string(cfg) != "null" {
		var c model.DetectorConfig
		if err := json.Unmarshal(cfg, &c); err != nil {
			return nil, fmt.Errorf("corrupt detector config for %s: %w", id, err)
		}
		d.DetectorConfig = &c
	}
	return &d, nil
}
