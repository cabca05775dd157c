// Package classifier calls the remote OCT classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrClassifierUnavailable covers network failures and non-2xx replies.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrMalformedResponse is returned when the reply does not have the
	// expected shape.
	ErrMalformedResponse = errors.New("malformed classifier response")
	// ErrCanceled is returned when the caller canceled or the timeout elapsed.
	ErrCanceled = errors.New("classification canceled")
)

// Image is the payload sent for classification.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result is a validated classifier reply.
type Result struct {
	Label         string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
	Confidence    float64            `json:"confidence"`
}

// StatusError carries the HTTP status of a failed call. It unwraps to
// ErrClassifierUnavailable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrClassifierUnavailable }

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	// RetryWait is the initial backoff; it doubles up to RetryMaxWait.
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// Client is a resty-based classifier client.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 5 * time.Second
	}

	c := &Client{logger: logger.With().Str("component", "classifier").Logger()}
	c.http = resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetRetryResetReaders(true).
		SetHeader("Accept", "application/json").
		AddRetryCondition(shouldRetry).
		AddRetryHook(func(r *resty.Response, err error) {
			ev := c.logger.Warn()
			if r != nil && r.Request != nil {
				ev = ev.Int("attempt", r.Request.Attempt)
			}
			if err != nil {
				ev = ev.Err(err)
			} else if r != nil {
				ev = ev.Int("status", r.StatusCode())
			}
			ev.Msg("retrying classifier request")
		})
	return c
}

// shouldRetry retries transport errors and 5xx/429 replies, never a
// canceled context.
func shouldRetry(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// Classify uploads img as the multipart field "file" to /predict.
func (c *Client) Classify(ctx context.Context, img Image) (*Result, error) {
	name := img.FileName
	if name == "" {
		name = "scan"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", name, contentType, bytes.NewReader(img.Data)).
		Post("/predict")
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}

	result, err := Parse(resp.Body())
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("label", result.Label).
		Float64("confidence", result.Confidence).
		Dur("latency", time.Since(start)).
		Msg("scan classified")
	return result, nil
}

// Parse validates a raw /predict reply and derives the confidence as the
// highest class probability.
func Parse(raw []byte) (*Result, error) {
	var reply struct {
		Prediction    *string            `json:"prediction"`
		Probabilities map[string]float64 `json:"probabilities"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if reply.Prediction == nil || *reply.Prediction == "" {
		return nil, fmt.Errorf("%w: missing prediction label", ErrMalformedResponse)
	}
	if len(reply.Probabilities) == 0 {
		return nil, fmt.Errorf("%w: missing probabilities", ErrMalformedResponse)
	}

	best := math.Inf(-1)
	for label, p := range reply.Probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %v for %q outside [0,1]", ErrMalformedResponse, p, label)
		}
		if p > best {
			best = p
		}
	}

	return &Result{
		Label:         *reply.Prediction,
		Probabilities: reply.Probabilities,
		Confidence:    best,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
