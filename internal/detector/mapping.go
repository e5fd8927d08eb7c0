package detector

import (
	"github.com/adaptive-alerting/detector-registry/internal/model"
	"github.com/adaptive-alerting/detector-registry/internal/validate"
)

// CreateMappingRequest bundles the metric-tag expression, the detector it
// maps to and the requesting user. It carries no persistence of its own;
// its contract is Validate.
type CreateMappingRequest struct {
	Expression *model.Expression `json:"expression"`
	Detector   *model.Detector   `json:"detector"`
	User       *model.User       `json:"user"`
}

// Validate checks expression, user and detector in that order and returns
// the first violation.
func (r *CreateMappingRequest) Validate() error {
	if err := validate.Expression(r.Expression); err != nil {
		return err
	}
	if err := validate.User(r.User); err != nil {
		return err
	}
	return validate.Detector(r.Detector)
}
