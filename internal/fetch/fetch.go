// Package fetch wraps the HTTP calls the source fetchers make: JSON and raw
// body GETs with status checking and a small retry loop for transient
// failures.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 1000 * time.Second
	DefaultAttempts = 3
	defaultBackoff  = 10 * time.Second

	maxErrorBody = 512
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch %s: status %d: %s", e.URL, e.Code, e.Body)
}

// Temporary reports whether retrying the request might succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client issues GET/POST requests with a shared set of headers.
type Client struct {
	HTTP     *http.Client
	Headers  map[string]string
	Attempts int
	Backoff  time.Duration
	Logger   *zap.Logger
}

// New returns a Client with the package defaults.
func New(logger *zap.Logger) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Headers:  map[string]string{},
		Attempts: DefaultAttempts,
		Backoff:  defaultBackoff,
		Logger:   logger,
	}
}

// WithHeader returns a copy of c that also sends the given header.
func (c *Client) WithHeader(key, value string) *Client {
	cp := *c
	cp.Headers = make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		cp.Headers[k] = v
	}
	cp.Headers[key] = value
	return &cp
}

// GetBytes returns the body of a successful GET.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// GetJSON decodes the body of a successful GET into target.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", url)
	}
	return nil
}

// Post sends body with the given content type and returns the response body.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, contentType, body)
}

func (c *Client) do(ctx context.Context, method, url, contentType string, payload []byte) ([]byte, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var body []byte
		body, err = c.once(ctx, method, url, contentType, payload)
		if err == nil {
			return body, nil
		}
		if !retryable(err) || attempt == attempts {
			break
		}
		wait := time.Duration(attempt) * c.Backoff
		if c.Logger != nil {
			c.Logger.Warn("Request failed, retrying",
				zap.String("url", url), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, err
}

func (c *Client) once(ctx context.Context, method, url, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", url)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
