// Package postgres is the production backend for the detector repository.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS detectors (
    uuid               TEXT PRIMARY KEY,
    enabled            BOOLEAN NOT NULL DEFAULT FALSE,
    trusted            BOOLEAN NOT NULL DEFAULT FALSE,
    created_by         TEXT NOT NULL DEFAULT '',
    date_created       TEXT NOT NULL,
    date_last_updated  TEXT NOT NULL,
    date_last_accessed TEXT NOT NULL,
    training_next_run  TEXT,
    config             JSONB NOT NULL,
    version            BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detectors_created_by ON detectors(created_by);
CREATE INDEX IF NOT EXISTS idx_detectors_last_updated ON detectors(date_last_updated);
CREATE INDEX IF NOT EXISTS idx_detectors_last_accessed ON detectors(date_last_accessed);
CREATE INDEX IF NOT EXISTS idx_detectors_training_next_run ON detectors(training_next_run);
`

// Bootstrap creates the schema if it does not exist.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// NewWithDB constructs a Postgres-backed store.Store.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Detectors() store.Detectors { return &detectors{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type detectors struct{ db *sql.DB }

const detectorColumns = `uuid, enabled, trusted, created_by, date_created, date_last_updated, date_last_accessed, config, version`

func (r *detectors) Save(ctx context.Context, d *model.Detector) (*model.Detector, error) {
	id := d.UUID.String()
	cfg, err := json.Marshal(d.DetectorConfig)
	if err != nil {
		return nil, err
	}
	meta := d.Meta
	if meta == nil {
		meta = &model.Meta{}
	}
	var nextRun interface{}
	if c := d.DetectorConfig; c != nil && c.TrainingMetaData != nil && c.TrainingMetaData.DateTrainingNextRun != "" {
		nextRun = c.TrainingMetaData.DateTrainingNextRun
	}

	if d.Version == 0 {
		_, err := r.db.ExecContext(ctx, `
            INSERT INTO detectors (uuid, enabled, trusted, created_by, date_created, date_last_updated, date_last_accessed, training_next_run, config, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1)
        `, id, d.Enabled, d.Trusted, meta.CreatedBy, meta.DateCreated, meta.DateLastUpdated, meta.DateLastAccessed, nextRun, cfg)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, fmt.Errorf("%w: detector %s already exists", model.ErrConflict, id)
			}
			return nil, err
		}
		out := *d
		out.Version = 1
		return &out, nil
	}

	res, err := r.db.ExecContext(ctx, `
        UPDATE detectors
        SET enabled=$1, trusted=$2, created_by=$3, date_created=$4, date_last_updated=$5, date_last_accessed=$6, training_next_run=$7, config=$8, version=version+1
        WHERE uuid=$9 AND version=$10
    `, d.Enabled, d.Trusted, meta.CreatedBy, meta.DateCreated, meta.DateLastUpdated, meta.DateLastAccessed, nextRun, cfg, id, d.Version)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM detectors WHERE uuid=$1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: detector %s version %d is stale", model.ErrConflict, id, d.Version)
	}
	out := *d
	out.Version = d.Version + 1
	return &out, nil
}

func (r *detectors) GetByUUID(ctx context.Context, id string) (*model.Detector, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE uuid=$1`, id)
	d, err := scanDetector(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, id)
	}
	return d, err
}

func (r *detectors) FindByCreatedBy(ctx context.Context, user string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE created_by=$1`, user)
}

func (r *detectors) FindUpdatedAfter(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE date_last_updated > $1`, date)
}

func (r *detectors) FindAccessedBefore(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE date_last_accessed < $1`, date)
}

func (r *detectors) FindTrainingDueBefore(ctx context.Context, date string) ([]*model.Detector, error) {
	return r.list(ctx, `SELECT `+detectorColumns+` FROM detectors WHERE training_next_run IS NOT NULL AND training_next_run < $1`, date)
}

func (r *detectors) DeleteByUUID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM detectors WHERE uuid=$1`, id)
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
