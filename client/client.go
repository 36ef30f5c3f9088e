// Package client speaks to the external forecasting service. The service is
// opaque: it accepts the per-entity inference records and a forecast horizon
// and returns, per entity and in the same order submitted, a mean sequence
// and named quantile sequences aligned one-to-one with the horizon.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bikecast/bikecast/backtest"
	"github.com/goccy/go-json"
)

var (
	ErrPredictionCount  = errors.New("prediction count does not match submitted record count")
	ErrHorizonMismatch  = errors.New("prediction length does not match the forecast horizon")
	ErrUnexpectedStatus = errors.New("unexpected status code from forecasting service")
)

// Client is an HTTP client for the forecasting service. It is safe for
// concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the forecasting service. The baseURL should
// include the scheme and host. A default timeout of 60 seconds is used for
// HTTP requests since the service trains on submission.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, 60*time.Second)
}

// NewWithTimeout creates a client with a custom request timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Prediction is the per-entity forecast returned by the service: a mean
// sequence plus named quantile sequences (e.g. "0.1", "0.5", "0.9"), each of
// horizon length.
type Prediction struct {
	Mean      []float64            `json:"mean"`
	Quantiles map[string][]float64 `json:"quantiles"`
}

type forecastRequest struct {
	Horizon   int               `json:"horizon"`
	Instances []backtest.Record `json:"instances"`
}

type forecastResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Forecast submits the inference record set and returns one prediction per
// record, in submission order. The response is validated against the
// submission: a differing entity count or a prediction not matching the
// horizon is an error.
func (c *Client) Forecast(ctx context.Context, recs []backtest.Record, horizon int) ([]Prediction, error) {
	if len(recs) == 0 {
		return nil, errors.New("no records to submit")
	}
	if horizon < 1 {
		return nil, fmt.Errorf("invalid horizon %d", horizon)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL, %w", err)
	}
	u = u.JoinPath("forecast")

	body, err := json.Marshal(forecastRequest{
		Horizon:   horizon,
		Instances: recs,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal forecast request, %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to create request, %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed, %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, %w", resp.StatusCode, ErrUnexpectedStatus)
	}

	var forecastResp forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecastResp); err != nil {
		return nil, fmt.Errorf("unable to decode forecast response, %w", err)
	}

	if len(forecastResp.Predictions) != len(recs) {
		return nil, fmt.Errorf(
			"%d predictions for %d records, %w",
			len(forecastResp.Predictions), len(recs), ErrPredictionCount,
		)
	}
	for i, pred := range forecastResp.Predictions {
		if len(pred.Mean) != horizon {
			return nil, fmt.Errorf(
				"prediction %d mean has length %d for horizon %d, %w",
				i, len(pred.Mean), horizon, ErrHorizonMismatch,
			)
		}
		for q, seq := range pred.Quantiles {
			if len(seq) != horizon {
				return nil, fmt.Errorf(
					"prediction %d quantile %q has length %d for horizon %d, %w",
					i, q, len(seq), horizon, ErrHorizonMismatch,
				)
			}
		}
	}
	return forecastResp.Predictions, nil
}
