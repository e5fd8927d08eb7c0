package detector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/store"
)

// --- Fakes ---

type tickClock struct{ now time.Time }

func (c *tickClock) Now() time.Time          { return c.now }
func (c *tickClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeStore struct {
	byUUID map[string]*model.Detector
}

func newFakeStore() *fakeStore {
	return &fakeStore{byUUID: make(map[string]*model.Detector)}
}

func (f *fakeStore) Detectors() store.Detectors { return &fakeDetectors{f} }

type fakeDetectors struct{ p *fakeStore }

func copyDetector(d *model.Detector) *model.Detector {
	out := *d
	out.DetectorConfig = d.DetectorConfig.Clone()
	if d.Meta != nil {
		m := *d.Meta
		out.Meta = &m
	}
	return &out
}

func (r *fakeDetectors) Save(_ context.Context, d *model.Detector) (*model.Detector, error) {
	existing, ok := r.p.byUUID[d.UUID.String()]
	if d.Version == 0 {
		if ok {
			return nil, fmt.Errorf("%w: detector %s already exists", model.ErrConflict, d.UUID)
		}
		saved := copyDetector(d)
		saved.Version = 1
		r.p.byUUID[d.UUID.String()] = saved
		return copyDetector(saved), nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, d.UUID)
	}
	if existing.Version != d.Version {
		return nil, fmt.Errorf("%w: stale version %d", model.ErrConflict, d.Version)
	}
	saved := copyDetector(d)
	saved.Version = d.Version + 1
	r.p.byUUID[d.UUID.String()] = saved
	return copyDetector(saved), nil
}

func (r *fakeDetectors) GetByUUID(_ context.Context, id string) (*model.Detector, error) {
	d, ok := r.p.byUUID[id]
	if !ok {
		return nil, fmt.Errorf("%w: detector %s", model.ErrNotFound, id)
	}
	return copyDetector(d), nil
}

func (r *fakeDetectors) FindByCreatedBy(_ context.Context, user string) ([]*model.Detector, error) {
	var out []*model.Detector
	for _, d := range r.p.byUUID {
		if d.Meta != nil && d.Meta.CreatedBy == user {
			out = append(out, copyDetector(d))
		}
	}
	return out, nil
}

func (r *fakeDetectors) FindUpdatedAfter(_ context.Context, date string) ([]*model.Detector, error) {
	var out []*model.Detector
	for _, d := range r.p.byUUID {
		if d.Meta != nil && d.Meta.DateLastUpdated > date {
			out = append(out, copyDetector(d))
		}
	}
	return out, nil
}

func (r *fakeDetectors) FindAccessedBefore(_ context.Context, date string) ([]*model.Detector, error) {
	var out []*model.Detector
	for _, d := range r.p.byUUID {
		if d.Meta != nil && d.Meta.DateLastAccessed < date {
			out = append(out, copyDetector(d))
		}
	}
	return out, nil
}

func (r *fakeDetectors) FindTrainingDueBefore(_ context.Context, date string) ([]*model.Detector, error) {
	var out []*model.Detector
	for _, d := range r.p.byUUID {
		if d.DetectorConfig == nil || d.DetectorConfig.TrainingMetaData == nil {
			continue
		}
		next := d.DetectorConfig.TrainingMetaData.DateTrainingNextRun
		if next != "" && next < date {
			out = append(out, copyDetector(d))
		}
	}
	return out, nil
}

func (r *fakeDetectors) DeleteByUUID(_ context.Context, id string) error {
	delete(r.p.byUUID, id)
	return nil
}

// --- Helpers ---

func newTestService(t *testing.T, now time.Time) (*Service, *fakeStore, *tickClock) {
	t.Helper()
	st := newFakeStore()
	clk := &tickClock{now: now}
	return NewService(st, clk, zerolog.Nop()), st, clk
}

func ewmaConfig() *model.DetectorConfig {
	return &model.DetectorConfig{Params: map[string]interface{}{
		"algo":   "ewma",
		"params": map[string]interface{}{"alpha": 0.1, "beta": 0.5},
	}}
}

func mustCreate(t *testing.T, svc *Service, createdBy string) uuid.UUID {
	t.Helper()
	id, err := svc.CreateDetector(context.Background(), &model.Detector{
		DetectorConfig: ewmaConfig(),
		Meta:           &model.Meta{CreatedBy: createdBy},
	})
	if err != nil {
		t.Fatalf("create detector: %v", err)
	}
	return id
}

// --- Tests ---

func TestCreateDetectorAssignsUUIDAndMeta(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)

	id := mustCreate(t, svc, "alice")
	if id == uuid.Nil {
		t.Fatal("expected assigned uuid")
	}

	got, err := svc.FindByUUID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != id.String() {
		t.Fatalf("id = %q, want %q", got.ID, id.String())
	}
	if got.Enabled || got.Trusted {
		t.Fatalf("new detector should start disabled and untrusted: %+v", got)
	}
	want := "2024-03-10T12:00:00.000Z"
	if got.Meta.CreatedBy != "alice" || got.Meta.DateCreated != want ||
		got.Meta.DateLastUpdated != want || got.Meta.DateLastAccessed != want {
		t.Fatalf("meta = %+v", got.Meta)
	}
}

func TestCreateDetectorRejectsPresetUUID(t *testing.T) {
	svc, st, _ := newTestService(t, time.Now().UTC())

	_, err := svc.CreateDetector(context.Background(), &model.Detector{
		UUID:           uuid.New(),
		DetectorConfig: ewmaConfig(),
	})
	if !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
	if len(st.byUUID) != 0 {
		t.Fatal("store must stay untouched when create is rejected")
	}
}

func TestCreateDetectorRejectsMissingConfig(t *testing.T) {
	svc, st, _ := newTestService(t, time.Now().UTC())

	_, err := svc.CreateDetector(context.Background(), &model.Detector{})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(st.byUUID) != 0 {
		t.Fatal("store must stay untouched when validation fails")
	}
}

func TestFindByCreatedBy(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now().UTC())
	mustCreate(t, svc, "bob")
	mustCreate(t, svc, "bob")

	list, err := svc.FindByCreatedBy(context.Background(), "bob")
	if err != nil {
		t.Fatalf("find by creator: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d detectors, want 2", len(list))
	}

	_, err = svc.FindByCreatedBy(context.Background(), "ghost")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown user", err)
	}
}

func TestToggleAndTrustDetector(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now().UTC())
	id := mustCreate(t, svc, "alice")

	if err := svc.ToggleDetector(context.Background(), id.String(), true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := svc.TrustDetector(context.Background(), id.String(), true); err != nil {
		t.Fatalf("trust: %v", err)
	}

	got, err := svc.FindByUUID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Enabled || !got.Trusted {
		t.Fatalf("flags = enabled:%v trusted:%v, want both true", got.Enabled, got.Trusted)
	}
}

func TestToggleDetectorUnknownUUID(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now().UTC())
	err := svc.ToggleDetector(context.Background(), uuid.NewString(), true)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleDetectorRevalidatesStoredRecord(t *testing.T) {
	svc, st, _ := newTestService(t, time.Now().UTC())

	// Seed a record that would no longer pass validation.
	id := uuid.New()
	st.byUUID[id.String()] = &model.Detector{
		ID:      id.String(),
		UUID:    id,
		Meta:    &model.Meta{CreatedBy: "alice"},
		Version: 1,
	}

	err := svc.ToggleDetector(context.Background(), id.String(), true)
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestGetLastUpdatedDetectorsWindow(t *testing.T) {
	svc, _, clk := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	old := mustCreate(t, svc, "alice")
	clk.advance(2 * time.Hour)
	recent := mustCreate(t, svc, "alice")
	clk.advance(10 * time.Minute)

	list, err := svc.GetLastUpdatedDetectors(context.Background(), 1800)
	if err != nil {
		t.Fatalf("last updated: %v", err)
	}
	if len(list) != 1 || list[0].UUID != recent {
		t.Fatalf("got %v, want only %s", list, recent)
	}
	_ = old
}

func TestGetLastUsedDetectorsReturnsStale(t *testing.T) {
	svc, _, clk := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	stale := mustCreate(t, svc, "alice")
	clk.advance(40 * 24 * time.Hour)
	fresh := mustCreate(t, svc, "alice")

	list, err := svc.GetLastUsedDetectors(context.Background(), 30)
	if err != nil {
		t.Fatalf("last used: %v", err)
	}
	if len(list) != 1 || list[0].UUID != stale {
		t.Fatalf("got %v, want only %s", list, stale)
	}
	_ = fresh
}

func TestGetDetectorsToBeTrainedBoundary(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	cutoff := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	due := mustCreate(t, svc, "alice")
	atCutoff := mustCreate(t, svc, "alice")

	if err := svc.UpdateDetectorTrainingTime(context.Background(), due.String(), cutoff.Add(-time.Minute).UnixMilli()); err != nil {
		t.Fatalf("training time: %v", err)
	}
	if err := svc.UpdateDetectorTrainingTime(context.Background(), atCutoff.String(), cutoff.UnixMilli()); err != nil {
		t.Fatalf("training time: %v", err)
	}

	list, err := svc.GetDetectorsToBeTrained(context.Background(), cutoff.UnixMilli())
	if err != nil {
		t.Fatalf("to be trained: %v", err)
	}
	// The cutoff is exclusive: a run scheduled exactly at the instant is not yet due.
	if len(list) != 1 || list[0].UUID != due {
		t.Fatalf("got %v, want only %s", list, due)
	}
}

func TestUpdateDetectorMergesConfigAndPreservesOwnership(t *testing.T) {
	svc, _, clk := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	id := mustCreate(t, svc, "alice")
	clk.advance(time.Hour)

	partial := &model.Detector{
		DetectorConfig: &model.DetectorConfig{Params: map[string]interface{}{
			"params": map[string]interface{}{"alpha": 0.2},
		}},
		Meta: &model.Meta{CreatedBy: "mallory", DateCreated: "1999-01-01T00:00:00.000Z"},
	}
	if err := svc.UpdateDetector(context.Background(), id.String(), partial); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.FindByUUID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	params := got.DetectorConfig.Params["params"].(map[string]interface{})
	if params["alpha"] != 0.2 || params["beta"] != 0.5 {
		t.Fatalf("merged params = %#v", params)
	}
	if got.Meta.CreatedBy != "alice" || got.Meta.DateCreated != "2024-03-10T12:00:00.000Z" {
		t.Fatalf("ownership fields rewritten: %+v", got.Meta)
	}
	if got.Meta.DateLastUpdated != "2024-03-10T13:00:00.000Z" {
		t.Fatalf("dateLastUpdated = %q", got.Meta.DateLastUpdated)
	}
}

func TestUpdateDetectorNilPartial(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now().UTC())
	id := mustCreate(t, svc, "alice")
	err := svc.UpdateDetector(context.Background(), id.String(), nil)
	if !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}

func TestUpdateDetectorLastUsedPreservesLastUpdated(t *testing.T) {
	svc, _, clk := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	id := mustCreate(t, svc, "alice")
	clk.advance(time.Hour)

	if err := svc.UpdateDetectorLastUsed(context.Background(), id.String()); err != nil {
		t.Fatalf("last used: %v", err)
	}

	got, err := svc.FindByUUID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Meta.DateLastAccessed != "2024-03-10T13:00:00.000Z" {
		t.Fatalf("dateLastAccessed = %q", got.Meta.DateLastAccessed)
	}
	if got.Meta.DateLastUpdated != "2024-03-10T12:00:00.000Z" {
		t.Fatalf("dateLastUpdated changed: %q", got.Meta.DateLastUpdated)
	}
}

func TestUpdateDetectorTrainingTimePreservesLastRun(t *testing.T) {
	svc, st, _ := newTestService(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	id := mustCreate(t, svc, "alice")

	stored := st.byUUID[id.String()]
	stored.DetectorConfig.TrainingMetaData = &model.TrainingMetaData{
		DateTrainingLastRun: "2024-03-01T00:00:00.000Z",
	}

	next := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.UpdateDetectorTrainingTime(context.Background(), id.String(), next.UnixMilli()); err != nil {
		t.Fatalf("training time: %v", err)
	}

	got, err := svc.FindByUUID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	tm := got.DetectorConfig.TrainingMetaData
	if tm.DateTrainingNextRun != "2024-04-01T00:00:00.000Z" {
		t.Fatalf("next run = %q", tm.DateTrainingNextRun)
	}
	if tm.DateTrainingLastRun != "2024-03-01T00:00:00.000Z" {
		t.Fatalf("last run changed: %q", tm.DateTrainingLastRun)
	}
}

func TestDeleteDetectorIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now().UTC())
	id := mustCreate(t, svc, "alice")

	if err := svc.DeleteDetector(context.Background(), id.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.FindByUUID(context.Background(), id.String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
	if err := svc.DeleteDetector(context.Background(), id.String()); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}
}
