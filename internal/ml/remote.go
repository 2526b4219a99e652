package ml

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forest-cover/internal/common"
	"forest-cover/internal/features"

	"github.com/go-resty/resty/v2"
)

// RemoteConfig points a RemoteModel at a ModelServer compatible service.
type RemoteConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// RemoteModel forwards predictions to a predict service over HTTP.
type RemoteModel struct {
	rest     *resty.Client
	base     string
	metadata ModelMetadata
}

// RemoteLoader connects to the predict service and reads its model info.
// The service must already have a model loaded.
func RemoteLoader(cfg RemoteConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		m := NewRemoteModel(cfg)
		source := "remote " + m.base
		if err := m.fetchInfo(ctx); err != nil {
			return nil, &RetrievalError{Source: source, Err: err}
		}
		m.metadata.Source = source
		if err := checkColumns(m, source); err != nil {
			return nil, err
		}
		return m, nil
	}
}

func NewRemoteModel(cfg RemoteConfig) *RemoteModel {
	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetRetryCount(cfg.Retries)
	if cfg.RetryWait > 0 {
		r.SetRetryWaitTime(cfg.RetryWait)
	}
	r.SetHeader("Accept", "application/json")
	return &RemoteModel{
		rest: r,
		base: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (m *RemoteModel) fetchInfo(ctx context.Context) error {
	var md ModelMetadata
	var apiErr errorResponse
	resp, err := m.rest.R().
		SetContext(ctx).
		SetResult(&md).
		SetError(&apiErr).
		Get(m.base + "/model/info")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("model info: status %d: %s", resp.StatusCode(), apiErr.Error)
	}
	if md.Format == "" {
		md.Format = common.SourceRemote
	}
	m.metadata = md
	return nil
}

// Predict posts the vector to the service and returns its class code.
func (m *RemoteModel) Predict(ctx context.Context, v features.FeatureVector) (int, error) {
	var out PredictionResponse
	var apiErr errorResponse
	resp, err := m.rest.R().
		SetContext(ctx).
		SetBody(PredictionRequest{Features: v.Slice(), RequestID: RequestIDFromContext(ctx)}).
		SetResult(&out).
		SetError(&apiErr).
		Post(m.base + "/predict")
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return 0, fmt.Errorf("predict service: status %d: %s", resp.StatusCode(), msg)
	}
	if out.Class == 0 {
		return 0, errors.New("predict service: response carries no class")
	}
	return out.Class, nil
}

func (m *RemoteModel) Metadata() ModelMetadata { return m.metadata }

func (m *RemoteModel) Close() error { return nil }
