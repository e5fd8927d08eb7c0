// Package storetest exercises a compliance suite against a store.Store
// implementation. Implementations should provide a clean, isolated store
// from makeStore.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/store"
)

func newDetector(createdBy, updated, accessed, nextRun string) *model.Detector {
	id := uuid.New()
	d := &model.Detector{
		ID:      id.String(),
		UUID:    id,
		Enabled: true,
		DetectorConfig: &model.DetectorConfig{
			Params: map[string]interface{}{
				"algo":   "ewma",
				"params": map[string]interface{}{"alpha": 0.1, "beta": 0.5},
			},
		},
		Meta: &model.Meta{
			CreatedBy:        createdBy,
			DateCreated:      "2024-01-01T00:00:00.000Z",
			DateLastUpdated:  updated,
			DateLastAccessed: accessed,
		},
	}
	if nextRun != "" {
		d.DetectorConfig.TrainingMetaData = &model.TrainingMetaData{DateTrainingNextRun: nextRun}
	}
	return d
}

// Run drives the repository contract against a fresh store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	repo := s.Detectors()

	// Round-trip: save then get returns a value-equal record.
	d := newDetector("alice", "2024-01-02T00:00:00.000Z", "2024-01-03T00:00:00.000Z", "2024-02-01T00:00:00.000Z")
	saved, err := repo.Save(ctx, d)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("Save: want version 1, got %d", saved.Version)
	}
	got, err := repo.GetByUUID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByUUID: %v", err)
	}
	// Seed params use float64 values so the JSON round-trip compares equal.
	want := *d
	want.Version = 1
	if !reflect.DeepEqual(&want, got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", &want, got)
	}

	// Optimistic concurrency: saving with a stale version conflicts.
	stale := *got
	stale.Version = saved.Version
	first, err := repo.Save(ctx, &stale)
	if err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("Save (update): want version 2, got %d", first.Version)
	}
	loser := *got
	loser.Version = saved.Version // still 1
	if _, err := repo.Save(ctx, &loser); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("stale Save: want ErrConflict, got %v", err)
	}

	// Inserting the same uuid again conflicts.
	dup := newDetector("alice", "2024-01-02T00:00:00.000Z", "2024-01-03T00:00:00.000Z", "")
	dup.UUID = d.UUID
	dup.ID = d.ID
	if _, err := repo.Save(ctx, dup); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate insert: want ErrConflict, got %v", err)
	}

	// Missing records.
	if _, err := repo.GetByUUID(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByUUID missing: want ErrNotFound, got %v", err)
	}
	absent := newDetector("bob", "2024-01-02T00:00:00.000Z", "2024-01-03T00:00:00.000Z", "")
	absent.Version = 7
	if _, err := repo.Save(ctx, absent); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("versioned Save of absent record: want ErrNotFound, got %v", err)
	}

	// Secondary queries.
	b1 := newDetector("bob", "2024-03-01T00:00:00.000Z", "2024-03-01T00:00:00.000Z", "2024-03-10T00:00:00.000Z")
	b2 := newDetector("bob", "2024-03-05T00:00:00.000Z", "2024-03-05T00:00:00.000Z", "")
	for _, rec := range []*model.Detector{b1, b2} {
		if _, err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	byBob, err := repo.FindByCreatedBy(ctx, "bob")
	if err != nil {
		t.Fatalf("FindByCreatedBy: %v", err)
	}
	if len(byBob) != 2 {
		t.Fatalf("FindByCreatedBy: want 2, got %d", len(byBob))
	}
	byGhost, err := repo.FindByCreatedBy(ctx, "ghost")
	if err != nil {
		t.Fatalf("FindByCreatedBy ghost: %v", err)
	}
	if len(byGhost) != 0 {
		t.Fatalf("FindByCreatedBy ghost: want empty, got %d", len(byGhost))
	}

	recent, err := repo.FindUpdatedAfter(ctx, "2024-03-03T00:00:00.000Z")
	if err != nil {
		t.Fatalf("FindUpdatedAfter: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != b2.ID {
		t.Fatalf("FindUpdatedAfter: want [%s], got %v", b2.ID, ids(recent))
	}

	staleRecs, err := repo.FindAccessedBefore(ctx, "2024-03-03T00:00:00.000Z")
	if err != nil {
		t.Fatalf("FindAccessedBefore: %v", err)
	}
	if !contains(staleRecs, b1.ID) || contains(staleRecs, b2.ID) {
		t.Fatalf("FindAccessedBefore: want b1 only among bob's, got %v", ids(staleRecs))
	}

	// Training due: b1 is due before 2024-03-11, not before 2024-03-01; b2
	// has no training block and never matches.
	due, err := repo.FindTrainingDueBefore(ctx, "2024-03-11T00:00:00.000Z")
	if err != nil {
		t.Fatalf("FindTrainingDueBefore: %v", err)
	}
	if !contains(due, b1.ID) || contains(due, b2.ID) {
		t.Fatalf("FindTrainingDueBefore: want b1 without b2, got %v", ids(due))
	}
	notDue, err := repo.FindTrainingDueBefore(ctx, "2024-03-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("FindTrainingDueBefore: %v", err)
	}
	if contains(notDue, b1.ID) {
		t.Fatalf("FindTrainingDueBefore: b1 not due yet, got %v", ids(notDue))
	}

	// Delete is idempotent.
	if err := repo.DeleteByUUID(ctx, b2.ID); err != nil {
		t.Fatalf("DeleteByUUID: %v", err)
	}
	if _, err := repo.GetByUUID(ctx, b2.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByUUID after delete: want ErrNotFound, got %v", err)
	}
	if err := repo.DeleteByUUID(ctx, b2.ID); err != nil {
		t.Fatalf("DeleteByUUID (repeat): %v", err)
	}
}

func ids(recs []*model.Detector) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func contains(recs []*model.Detector, id string) bool {
	for _, r := range recs {
		if r.ID == id {
			return true
		}
	}
	return false
}
