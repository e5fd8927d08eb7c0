// Package validate enforces the structural rules applied on every write:
// detectors, metric-tag expressions and caller identities. Each failure
// wraps model.ErrValidation and names the offending field.
package validate

import (
	"fmt"

	"github.com/adaptive-alerting/detector-registry/internal/clock"
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

func failf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}

// Expression requires at least one tag predicate, each with a non-empty key
// and value.
func Expression(expr *model.Expression) error {
	if expr == nil {
		return failf("expression is required")
	}
	if len(expr.Operands) == 0 {
		return failf("expression.operands must contain at least one tag predicate")
	}
	for i, op := range expr.Operands {
		if op.Key == "" {
			return failf("expression.operands[%d].key is required", i)
		}
		if op.Value == "" {
			return failf("expression.operands[%d].value is required", i)
		}
	}
	return nil
}

// User requires a non-empty caller identity.
func User(u *model.User) error {
	if u == nil {
		return failf("user is required")
	}
	if u.ID == "" {
		return failf("user.id is required")
	}
	return nil
}

// Detector requires a config, and if a training block names a next run it
// must be a parseable UTC-date-string.
func Detector(d *model.Detector) error {
	if d == nil {
		return failf("detector is required")
	}
	if d.DetectorConfig == nil {
		return failf("detector.detectorConfig is required")
	}
	tm := d.DetectorConfig.TrainingMetaData
	if tm != nil && tm.DateTrainingNextRun != "" {
		if _, err := clock.ParseUTCDate(tm.DateTrainingNextRun); err != nil {
			return failf("detector.detectorConfig.trainingMetaData.dateTrainingNextRun is not a UTC date string: %q", tm.DateTrainingNextRun)
		}
	}
	return nil
}
