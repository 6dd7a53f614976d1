// Package prediction is the HTTP client for the external restock prediction service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-stock-analytics/internal/apperror"
	"go-stock-analytics/internal/metrics"
)

// Predictor is the contract with the prediction service. Implementations
// never retry; every failure is returned as an *apperror.ConnectivityError.
type Predictor interface {
	Restock(ctx context.Context, items []Item) ([]Prediction, error)
	Simulate(ctx context.Context, items []Item, scenarios []Scenario) (map[string]json.RawMessage, error)
	Health(ctx context.Context) (*Health, error)
}

var ErrUnsuccessful = errors.New("prediction service reported failure")

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewHTTPClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

func (c *HTTPClient) Restock(ctx context.Context, items []Item) ([]Prediction, error) {
	var resp restockResponse
	if err := c.call(ctx, "restock", http.MethodPost, "/api/predictions/restock", items, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, c.unsuccessful("restock", resp.Error)
	}
	return resp.Predictions, nil
}

func (c *HTTPClient) Simulate(ctx context.Context, items []Item, scenarios []Scenario) (map[string]json.RawMessage, error) {
	var resp simulateResponse
	req := simulateRequest{Items: items, Scenarios: scenarios}
	if err := c.call(ctx, "simulate", http.MethodPost, "/api/predictions/simulate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, c.unsuccessful("simulate", resp.Error)
	}
	return resp.Results, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.call(ctx, "health", http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *HTTPClient) unsuccessful(op, msg string) error {
	err := ErrUnsuccessful
	if msg != "" {
		err = fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
	}
	return &apperror.ConnectivityError{Service: "prediction", Op: op, Err: err}
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, payload, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		c.metrics.ObservePrediction(op, outcome, time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &apperror.ConnectivityError{Service: "prediction", Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperror.ConnectivityError{Service: "prediction", Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperror.ConnectivityError{Service: "prediction", Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperror.ConnectivityError{
			Service: "prediction",
			Op:      op,
			Err:     fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(raw))),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperror.ConnectivityError{Service: "prediction", Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
