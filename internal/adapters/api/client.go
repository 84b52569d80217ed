package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"crmpilates/internal/adapters/http/perf"
	"crmpilates/internal/domain/token"
)

// Defaults for Options fields left zero.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultRetryBaseDelay = 200 * time.Millisecond
	DefaultRetryMaxDelay  = 2 * time.Second
	DefaultSlowThreshold  = 500 * time.Millisecond
	maxErrorBody          = 64 << 10
)

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	SlowThreshold  time.Duration  // calls slower than this are logged
	Location       *time.Location // zone of timestamps sent without an offset
	HTTPClient     *http.Client
	Collector      *perf.Collector
}

// Client calls the studio REST API.
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
}

// NewClient creates a client for the API rooted at baseURL.
// PRE: baseURL is an absolute http(s) URL
// POST: zero option fields are replaced by defaults
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		opts:    opts,
	}
}

// RequestOptions are the per-call knobs of Request.
type RequestOptions struct {
	Body   any
	Header http.Header
	Method string
}

// Response is a successful (2xx) API response.
type Response struct {
	Status int
	Data   json.RawMessage
	Header http.Header
	URL    string
}

type tokenKey struct{}

// ContextWithToken attaches the caller's access token to ctx.
func ContextWithToken(ctx context.Context, t token.Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, t)
}

// TokenFromContext returns the token attached by ContextWithToken.
func TokenFromContext(ctx context.Context) (token.Token, bool) {
	t, ok := ctx.Value(tokenKey{}).(token.Token)
	return t, ok && !t.IsEmpty()
}

// Request performs one API call.
// Method is POST when a body is given and GET otherwise, unless overridden.
// PRE: endpoint is a path relative to the base URL
// POST: 2xx returns Response; anything else returns *Error
func (c *Client) Request(ctx context.Context, endpoint string, ro RequestOptions) (Response, error) {
	method := ro.Method
	if method == "" {
		method = http.MethodGet
		if ro.Body != nil {
			method = http.MethodPost
		}
	}
	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var payload []byte
	if ro.Body != nil {
		b, err := json.Marshal(ro.Body)
		if err != nil {
			return Response{}, fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		payload = b
	}

	// Only idempotent reads are replayed; a repeated POST could debit credits twice.
	attempts := 1
	if method == http.MethodGet {
		attempts += c.opts.MaxRetries
	}

	var lastErr *Error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt - 1)
			slog.Warn("api_request_retry", "method", method, "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return Response{}, &Error{Kind: KindTransport, URL: url, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := c.do(ctx, method, url, payload, ro.Header)
		if err == nil {
			return resp, nil
		}
		if !errors.As(err, &lastErr) || lastErr.Kind != KindTransport || ctx.Err() != nil {
			return Response{}, err
		}
	}
	return Response{}, lastErr
}

// retryDelay is 2^n * base, capped at the max delay.
func (c *Client) retryDelay(n int) time.Duration {
	delay := c.opts.RetryBaseDelay * (1 << n)
	if delay > c.opts.RetryMaxDelay || delay <= 0 {
		return c.opts.RetryMaxDelay
	}
	return delay
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, extra http.Header) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Response{}, &Error{Kind: KindTransport, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if t, ok := TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", t.AuthorizationHeader())
	}
	for k, vs := range extra {
		req.Header[k] = vs
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.record(method, url, 0, start)
		slog.Warn("api_request_failed", "method", method, "url", url, "error", err)
		return Response{}, &Error{Kind: KindTransport, URL: url, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	c.record(method, url, res.StatusCode, start)
	if err != nil {
		return Response{}, &Error{Kind: KindTransport, Status: res.StatusCode, URL: url, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		apiErr := decodeError(res.StatusCode, url, data)
		slog.Warn("api_request_rejected", "method", method, "url", url, "status", res.StatusCode, "kind", apiErr.Kind.String())
		return Response{}, apiErr
	}

	slog.Debug("api_request", "method", method, "url", url, "status", res.StatusCode, "request_id", req.Header.Get("X-Request-ID"))
	return Response{
		Status: res.StatusCode,
		Data:   data,
		Header: res.Header,
		URL:    url,
	}, nil
}

func (c *Client) record(method, url string, status int, start time.Time) {
	elapsed := time.Since(start)
	path := strings.TrimPrefix(url, c.baseURL)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if elapsed > c.opts.SlowThreshold {
		slog.Warn("slow_api_request", "method", method, "path", path, "duration_ms", elapsed.Milliseconds())
	}
	if c.opts.Collector != nil {
		c.opts.Collector.Record(perf.Entry{
			Kind:       perf.KindUpstream,
			Path:       method + " " + path,
			StatusCode: status,
			DurationMs: float64(elapsed.Microseconds()) / 1000.0,
			Timestamp:  start,
		})
	}
}
