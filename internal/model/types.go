package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Detector is the aggregate root of the registry: a named, configured
// anomaly-detection rule together with its system-maintained bookkeeping.
type Detector struct {
	// ID is the canonical string form of UUID, kept for wire compatibility.
	// It is derived, never persisted independently.
	ID             string          `json:"id"`
	UUID           uuid.UUID       `json:"uuid"`
	Enabled        bool            `json:"enabled"`
	Trusted        bool            `json:"trusted"`
	DetectorConfig *DetectorConfig `json:"detectorConfig,omitempty"`
	Meta           *Meta           `json:"meta,omitempty"`

	// Version is the optimistic-concurrency counter threaded through Save.
	// Zero means "not yet persisted".
	Version int64 `json:"-"`
}

// DetectorConfig is the user-authored configuration: an opaque,
// algorithm-specific parameter bag plus the training schedule block.
// On the wire the bag is flattened beside trainingMetaData into one object.
type DetectorConfig struct {
	Params           map[string]interface{} `json:"-"`
	TrainingMetaData *TrainingMetaData      `json:"-"`
}

// TrainingMetaData records when the detector's model next needs retraining
// and when it last ran. Both are UTC-date-strings.
type TrainingMetaData struct {
	DateTrainingNextRun string `json:"dateTrainingNextRun,omitempty"`
	DateTrainingLastRun string `json:"dateTrainingLastRun,omitempty"`
}

// Meta is system-maintained bookkeeping. CreatedBy and DateCreated are set
// once at creation and never change. All dates are UTC-date-strings
// (ISO-8601 zulu, millisecond precision), which keeps string comparison
// equivalent to temporal comparison.
type Meta struct {
	CreatedBy        string `json:"createdBy,omitempty"`
	DateCreated      string `json:"dateCreated,omitempty"`
	DateLastUpdated  string `json:"dateLastUpdated,omitempty"`
	DateLastAccessed string `json:"dateLastAccessed,omitempty"`
}

// Expression is a predicate over metric tags selecting which metric streams
// a detector applies to.
type Expression struct {
	Operator string         `json:"operator,omitempty"`
	Operands []TagPredicate `json:"operands"`
}

// TagPredicate matches a single metric tag key to a value.
type TagPredicate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// User identifies the caller. Only its non-emptiness is contractual.
type User struct {
	ID string `json:"id"`
}

const trainingMetaDataKey = "trainingMetaData"

// MarshalJSON flattens Params beside trainingMetaData so clients see a
// single config object.
func (c DetectorConfig) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, len(c.Params)+1)
	for k, v := range c.Params {
		obj[k] = v
	}
	if c.TrainingMetaData != nil {
		obj[trainingMetaDataKey] = c.TrainingMetaData
	}
	return json.Marshal(obj)
}

// UnmarshalJSON splits trainingMetaData out of the flat object and keeps
// every other key in Params.
func (c *DetectorConfig) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := DetectorConfig{}
	if tm, ok := raw[trainingMetaDataKey]; ok {
		var t TrainingMetaData
		if err := json.Unmarshal(tm, &t); err != nil {
			return err
		}
		out.TrainingMetaData = &t
		delete(raw, trainingMetaDataKey)
	}
	if len(raw) > 0 {
		out.Params = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			out.Params[k] = val
		}
	}
	*c = out
	return nil
}

// Clone returns a copy that is independent one level into nested parameter
// maps; deeper values are shared, matching the merge semantics.
func (c *DetectorConfig) Clone() *DetectorConfig {
	if c == nil {
		return nil
	}
	out := &DetectorConfig{}
	if c.Params != nil {
		out.Params = make(map[string]interface{}, len(c.Params))
		for k, v := range c.Params {
			if nested, ok := v.(map[string]interface{}); ok {
				cp := make(map[string]interface{}, len(nested))
				for nk, nv := range nested {
					cp[nk] = nv
				}
				out.Params[k] = cp
				continue
			}
			out.Params[k] = v
		}
	}
	if c.TrainingMetaData != nil {
		tm := *c.TrainingMetaData
		out.TrainingMetaData = &tm
	}
	return out
}
