// Package client is a thin Go client for the detector registry REST API.
package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/adaptive-alerting/detector-registry/internal/detector"
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

// Client wraps the registry's REST endpoints. Error kinds mirror the
// service: 404 maps to model.ErrNotFound, 400 to model.ErrValidation,
// 409 to model.ErrConflict.
type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func asServiceError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if body, ok := resp.Error().(*errorBody); ok && body != nil && body.Message != "" {
		msg = body.Message
	}
	switch resp.StatusCode() {
	case 404:
		return fmt.Errorf("%w: %s", model.ErrNotFound, msg)
	case 400:
		return fmt.Errorf("%w: %s", model.ErrValidation, msg)
	case 409:
		return fmt.Errorf("%w: %s", model.ErrConflict, msg)
	default:
		return fmt.Errorf("registry request failed: %s", msg)
	}
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

// CreateDetector submits a new detector and returns its assigned UUID.
func (c *Client) CreateDetector(ctx context.Context, d *model.Detector) (string, error) {
	var out struct {
		UUID string `json:"uuid"`
	}
	resp, err := c.req(ctx).SetBody(d).SetResult(&out).Post("/api/detectors")
	if err != nil {
		return "", err
	}
	if err := asServiceError(resp); err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (c *Client) GetDetector(ctx context.Context, uuid string) (*model.Detector, error) {
	var out model.Detector
	resp, err := c.req(ctx).SetResult(&out).Get("/api/detectors/" + uuid)
	if err != nil {
		return nil, err
	}
	if err := asServiceError(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListByCreatedBy(ctx context.Context, user string) ([]*model.Detector, error) {
	var out []*model.Detector
	resp, err := c.req(ctx).SetQueryParam("createdBy", user).SetResult(&out).Get("/api/detectors")
	if err != nil {
		return nil, err
	}
	if err := asServiceError(resp); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateDetector(ctx context.Context, uuid string, partial *model.Detector) error {
	resp, err := c.req(ctx).SetBody(partial).Put("/api/detectors/" + uuid)
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

func (c *Client) ToggleDetector(ctx context.Context, uuid string, enabled bool) error {
	resp, err := c.req(ctx).
		SetBody(map[string]bool{"enabled": enabled}).
		Post("/api/detectors/" + uuid + "/enabled")
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

func (c *Client) TrustDetector(ctx context.Context, uuid string, trusted bool) error {
	resp, err := c.req(ctx).
		SetBody(map[string]bool{"trusted": trusted}).
		Post("/api/detectors/" + uuid + "/trusted")
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

// TouchDetector records a last-used ping.
func (c *Client) TouchDetector(ctx context.Context, uuid string) error {
	resp, err := c.req(ctx).Post("/api/detectors/" + uuid + "/lastUsed")
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

// UpdateTrainingTime schedules the next training run at the given epoch-millisecond instant.
func (c *Client) UpdateTrainingTime(ctx context.Context, uuid string, nextRunEpochMs int64) error {
	resp, err := c.req(ctx).
		SetBody(map[string]int64{"nextRun": nextRunEpochMs}).
		Post("/api/detectors/" + uuid + "/trainingTime")
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

func (c *Client) DeleteDetector(ctx context.Context, uuid string) error {
	resp, err := c.req(ctx).Delete("/api/detectors/" + uuid)
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

// LastUpdatedDetectors lists detectors updated within the past intervalSeconds.
func (c *Client) LastUpdatedDetectors(ctx context.Context, intervalSeconds int64) ([]*model.Detector, error) {
	return c.listQuery(ctx, "/api/detectors/lastUpdated", "interval", strconv.FormatInt(intervalSeconds, 10))
}

// LastUsedDetectors lists detectors not accessed in the past noOfDays days.
func (c *Client) LastUsedDetectors(ctx context.Context, noOfDays int) ([]*model.Detector, error) {
	return c.listQuery(ctx, "/api/detectors/lastUsed", "days", strconv.Itoa(noOfDays))
}

// DetectorsToBeTrained lists detectors due for training before the given epoch-millisecond instant.
func (c *Client) DetectorsToBeTrained(ctx context.Context, timestampMs int64) ([]*model.Detector, error) {
	return c.listQuery(ctx, "/api/detectors/toBeTrained", "timestamp", strconv.FormatInt(timestampMs, 10))
}

// ValidateMapping asks the registry to validate a detector mapping request.
func (c *Client) ValidateMapping(ctx context.Context, req *detector.CreateMappingRequest) error {
	resp, err := c.req(ctx).SetBody(req).Post("/api/detectorMappings/validate")
	if err != nil {
		return err
	}
	return asServiceError(resp)
}

func (c *Client) listQuery(ctx context.Context, path, key, value string) ([]*model.Detector, error) {
	var out []*model.Detector
	resp, err := c.req(ctx).SetQueryParam(key, value).SetResult(&out).Get(path)
	if err != nil {
		return nil, err
	}
	if err := asServiceError(resp); err != nil {
		return nil, err
	}
	return out, nil
}
