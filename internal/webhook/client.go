// Package webhook posts messages and files to a Discord webhook endpoint with
// rate-limit-aware retry. It is the only network-facing component and the only
// place holding a backoff policy.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/mongocli/internal/logger"
)

// ErrRetriesExhausted indicates repeated rate limiting beyond the retry budget.
var ErrRetriesExhausted = errors.New("webhook request failed after retries")

const (
	// defaultMaxRetries is the number of additional attempts after the first.
	defaultMaxRetries = 4
	// defaultFallbackWait applies when a 429 carries no usable retry_after hint.
	defaultFallbackWait = 1500 * time.Millisecond
	// excerptLimit bounds the response body carried in a StatusError.
	excerptLimit = 300
)

// StatusError is a non-retryable HTTP failure. Anything other than 429 is
// assumed non-transient (bad webhook, malformed payload, auth failure).
type StatusError struct {
	Code    int
	Excerpt string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook request failed with status %d: %s", e.Code, e.Excerpt)
}

// RetryPolicy bounds how rate-limited requests are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// FallbackWait is used when the server supplies no retry_after hint.
	FallbackWait time.Duration
}

// DefaultRetryPolicy matches the webhook provider's observed rate limiting.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: defaultMaxRetries, FallbackWait: defaultFallbackWait}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// Client posts to a single validated webhook URL.
type Client struct {
	url    string
	http   *http.Client
	policy RetryPolicy
	log    logger.Logger
	sleep  func(time.Duration)
}

// NewClient validates rawURL and builds a client for it.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	c := &Client{
		url:    rawURL,
		http:   &http.Client{Timeout: 60 * time.Second},
		policy: DefaultRetryPolicy(),
		log:    logger.Global(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage posts a plain text message as a JSON content envelope.
func (c *Client) SendMessage(ctx context.Context, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.post(ctx, "application/json", body)
}

// SendFile posts the file at path together with a text message, as a
// multipart body with a payload_json field and a files[0] binary part.
func (c *Client) SendFile(ctx context.Context, content, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read upload file %q: %w", path, err)
	}

	var payload Payload
	if err := payload.AddJSON("payload_json", map[string]string{"content": content}); err != nil {
		return err
	}
	payload.AddFile("files[0]", filepath.Base(path), data)

	contentType, body, err := payload.Encode()
	if err != nil {
		return err
	}
	return c.post(ctx, contentType, body)
}

// post is the shared retrying primitive behind both send operations. It
// retries only on 429, waiting per the server's retry_after hint when one is
// present and parseable, and fails immediately on any other non-2xx status.
func (c *Client) post(ctx context.Context, contentType string, body []byte) error {
	attempts := c.policy.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("post to webhook: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return fmt.Errorf("read webhook response: %w", readErr)
			}
			return nil
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return &StatusError{Code: resp.StatusCode, Excerpt: excerpt(respBody)}
		}
		if attempt == attempts {
			return fmt.Errorf("%w: rate limited on all %d attempts", ErrRetriesExhausted, attempts)
		}

		wait := retryWait(respBody, c.policy.FallbackWait)
		c.log.Warn("webhook rate limited, retrying",
			"attempt", attempt,
			"wait", wait.String(),
		)
		c.sleep(wait)
	}
	return ErrRetriesExhausted
}

// retryWait extracts the retry_after hint from a 429 body. The provider has
// been inconsistent about units, so values above 1000 are taken as already
// milliseconds and anything else as seconds.
func retryWait(body []byte, fallback time.Duration) time.Duration {
	var hint struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &hint); err != nil || hint.RetryAfter == nil {
		return fallback
	}
	v := *hint.RetryAfter
	if v > 1000 {
		return time.Duration(v) * time.Millisecond
	}
	return time.Duration(v * float64(time.Second))
}

func excerpt(body []byte) string {
	if len(body) > excerptLimit {
		body = body[:excerptLimit]
	}
	return string(body)
}
