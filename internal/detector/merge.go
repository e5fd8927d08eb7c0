package detector

import (
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

// MergeConfig produces a new config from current plus a partial update.
// A nil partial returns current unchanged. Present fields in partial
// override current; absent fields are retained. Nested parameter maps are
// merged one level deep, anything deeper replaces wholesale. The operation
// is idempotent: merging the same partial twice yields the same result.
func MergeConfig(current, partial *model.DetectorConfig) *model.DetectorConfig {
	if partial == nil {
		return current
	}
	out := current.Clone()
	if out == nil {
		out = &model.DetectorConfig{}
	}
	if len(partial.Params) > 0 && out.Params == nil {
		out.Params = make(map[string]interface{}, len(partial.Params))
	}
	for k, v := range partial.Params {
		if pm, ok := v.(map[string]interface{}); ok {
			if cm, ok := out.Params[k].(map[string]interface{}); ok {
				merged := make(map[string]interface{}, len(cm)+len(pm))
				for ck, cv := range cm {
					merged[ck] = cv
				}
				for pk, pv := range pm {
					merged[pk] = pv
				}
				out.Params[k] = merged
				continue
			}
		}
		out.Params[k] = v
	}
	if partial.TrainingMetaData != nil {
		tm := *partial.TrainingMetaData
		out.TrainingMetaData = &tm
	}
	return out
}
