package sumo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound        = errors.New("sumo: resource not found")
	ErrForbidden       = errors.New("sumo: access forbidden")
	ErrUnauthorized    = errors.New("sumo: unauthorized")
	ErrTooManyRequests = errors.New("sumo: rate limited")
	ErrServerError     = errors.New("sumo: server error")
	ErrJobFailed       = errors.New("sumo: job failed")
)

// DefaultEndpoint is the API base of the US1 deployment.
const DefaultEndpoint = "https://api.sumologic.com/api"

// Options configures the API client.
type Options struct {
	// Endpoint is the API base URL, without the version segment.
	// A trailing /v1 or /v2 is tolerated and stripped.
	// Default: DefaultEndpoint
	Endpoint string

	AccessID  string
	AccessKey string

	// AdminMode sends isAdminMode: true so content of all users is visible.
	AdminMode bool

	// Timeout for individual requests.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 32
	MaxIdleConnsPerHost int

	// RetryAttempts is how many times a rate-limited (429) or
	// unreachable request is repeated. Other statuses are never retried.
	// Default: 3
	RetryAttempts int

	// RetryDelay is the flat wait between retries.
	// Default: 5s
	RetryDelay time.Duration

	// PollInterval is the flat wait between job status polls.
	// Default: 1s
	PollInterval time.Duration

	// JobTimeout bounds one asynchronous job, start to result.
	// Default: 10m
	JobTimeout time.Duration

	// PageSize is the limit used when paging global object sets.
	// Default: 100
	PageSize int

	Logger *slog.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Endpoint:            DefaultEndpoint,
		Timeout:             60 * time.Second,
		MaxIdleConnsPerHost: 32,
		RetryAttempts:       3,
		RetryDelay:          5 * time.Second,
		PollInterval:        time.Second,
		JobTimeout:          10 * time.Minute,
		PageSize:            100,
	}
}

// StatusError is returned for non-success HTTP responses.
// It unwraps to one of the sentinel errors when the status has one.
type StatusError struct {
	Code   int
	Method string
	Path   string
	Body   string

	err error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("sumo: %s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.err
}

// Client talks to the content management API.
type Client struct {
	client *http.Client
	base   string
	opts   Options
	log    *slog.Logger
}

// NewClient creates a new API client with the given options.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Endpoint == "" {
		opts.Endpoint = def.Endpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = def.JobTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		base: normalizeEndpoint(opts.Endpoint),
		opts: opts,
		log:  logger.With("component", "sumo"),
	}
}

// get performs a GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// do sends a request, retrying rate limits and transport errors with a flat
// delay. Any other non-2xx status is returned immediately.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, c.opts.RetryDelay); err != nil {
				return nil, err
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.decorate(req, body != nil)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = newStatusError(method, path, resp.StatusCode, data)
			continue
		}
		if err := checkStatusCode(resp.StatusCode); err != nil {
			se := newStatusError(method, path, resp.StatusCode, data)
			se.err = err
			return nil, se
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}
		return data, nil
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.opts.RetryAttempts+1, lastErr)
}

func (c *Client) decorate(req *http.Request, hasBody bool) {
	if c.opts.AccessID != "" || c.opts.AccessKey != "" {
		req.SetBasicAuth(c.opts.AccessID, c.opts.AccessKey)
	}
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.AdminMode {
		req.Header.Set("isAdminMode", "true")
	}
}

func newStatusError(method, path string, code int, body []byte) *StatusError {
	se := &StatusError{
		Code:   code,
		Method: method,
		Path:   path,
		Body:   strings.TrimSpace(truncate(string(body), 256)),
	}
	if code == http.StatusTooManyRequests {
		se.err = ErrTooManyRequests
	}
	return se
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrTooManyRequests
	case code >= 500:
		return ErrServerError
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// normalizeEndpoint strips trailing slashes and a version segment, so both
// https://api.sumologic.com/api and https://api.sumologic.com/api/v1 work.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	for _, v := range []string{"/v1", "/v2"} {
		endpoint = strings.TrimSuffix(endpoint, v)
	}
	return endpoint
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
