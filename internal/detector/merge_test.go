package detector

import (
	"reflect"
	"testing"

	"github.com/adaptive-alerting/detector-registry/internal/model"
)

func TestMergeConfigNilPartialReturnsCurrent(t *testing.T) {
	current := &model.DetectorConfig{Params: map[string]interface{}{"algo": "ewma"}}
	if got := MergeConfig(current, nil); got != current {
		t.Fatalf("expected current returned unchanged, got %#v", got)
	}
}

func TestMergeConfigNestedMapsMergeOneLevelDeep(t *testing.T) {
	current := &model.DetectorConfig{Params: map[string]interface{}{
		"algo":   "ewma",
		"params": map[string]interface{}{"alpha": 0.1, "beta": 0.5},
	}}
	partial := &model.DetectorConfig{Params: map[string]interface{}{
		"params": map[string]interface{}{"alpha": 0.2},
	}}

	got := MergeConfig(current, partial)

	want := map[string]interface{}{
		"algo":   "ewma",
		"params": map[string]interface{}{"alpha": 0.2, "beta": 0.5},
	}
	if !reflect.DeepEqual(got.Params, want) {
		t.Fatalf("merged params = %#v, want %#v", got.Params, want)
	}
	// current must not be mutated
	if current.Params["params"].(map[string]interface{})["alpha"] != 0.1 {
		t.Fatalf("merge mutated current config: %#v", current.Params)
	}
}

func TestMergeConfigScalarOverridesAndRetains(t *testing.T) {
	current := &model.DetectorConfig{Params: map[string]interface{}{"algo": "ewma", "threshold": 3.0}}
	partial := &model.DetectorConfig{Params: map[string]interface{}{"algo": "pewma"}}

	got := MergeConfig(current, partial)

	if got.Params["algo"] != "pewma" {
		t.Fatalf("algo = %v, want pewma", got.Params["algo"])
	}
	if got.Params["threshold"] != 3.0 {
		t.Fatalf("threshold = %v, want retained 3.0", got.Params["threshold"])
	}
}

func TestMergeConfigScalarReplacesNestedMapWholesale(t *testing.T) {
	current := &model.DetectorConfig{Params: map[string]interface{}{
		"params": map[string]interface{}{"alpha": 0.1},
	}}
	partial := &model.DetectorConfig{Params: map[string]interface{}{"params": "off"}}

	got := MergeConfig(current, partial)
	if got.Params["params"] != "off" {
		t.Fatalf("params = %#v, want wholesale replacement", got.Params["params"])
	}
}

func TestMergeConfigIdempotent(t *testing.T) {
	current := &model.DetectorConfig{Params: map[string]interface{}{
		"algo":   "ewma",
		"params": map[string]interface{}{"alpha": 0.1, "beta": 0.5},
	}}
	partial := &model.DetectorConfig{Params: map[string]interface{}{
		"params": map[string]interface{}{"alpha": 0.2},
	}}

	once := MergeConfig(current, partial)
	twice := MergeConfig(once, partial)
	if !reflect.DeepEqual(once.Params, twice.Params) {
		t.Fatalf("merge not idempotent: %#v vs %#v", once.Params, twice.Params)
	}
}

func TestMergeConfigTrainingBlockOverride(t *testing.T) {
	current := &model.DetectorConfig{
		TrainingMetaData: &model.TrainingMetaData{
			DateTrainingNextRun: "2024-01-01T00:00:00.000Z",
			DateTrainingLastRun: "2023-12-01T00:00:00.000Z",
		},
	}
	partial := &model.DetectorConfig{
		TrainingMetaData: &model.TrainingMetaData{DateTrainingNextRun: "2024-02-01T00:00:00.000Z"},
	}

	got := MergeConfig(current, partial)
	if got.TrainingMetaData.DateTrainingNextRun != "2024-02-01T00:00:00.000Z" {
		t.Fatalf("next run = %q", got.TrainingMetaData.DateTrainingNextRun)
	}
	// the training block overrides as a unit
	if got.TrainingMetaData.DateTrainingLastRun != "" {
		t.Fatalf("last run = %q, want empty", got.TrainingMetaData.DateTrainingLastRun)
	}
	if got.TrainingMetaData == partial.TrainingMetaData {
		t.Fatal("merged config shares training block with partial")
	}
}

func TestMergeConfigNilCurrent(t *testing.T) {
	partial := &model.DetectorConfig{Params: map[string]interface{}{"algo": "ewma"}}
	got := MergeConfig(nil, partial)
	if got.Params["algo"] != "ewma" {
		t.Fatalf("params = %#v", got.Params)
	}
}
