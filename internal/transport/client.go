// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/sigil-dev/storefront/internal/metrics"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

const (
	// DefaultTimeout bounds every request unless Options.Timeout overrides it.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the already resolved backend origin, e.g. http://localhost:8000.
	BaseURL string
	Timeout time.Duration

	// HTTPClient replaces the default client. It is copied; a missing Jar or
	// Timeout is filled in on the copy.
	HTTPClient *http.Client

	// Credentials holds auth headers and the user id. A fresh empty set is
	// created when nil.
	Credentials *Credentials

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// Tracing wraps the transport with OpenTelemetry client spans.
	Tracing bool

	Metrics   *metrics.Recorder
	Logger    zerolog.Logger
	UserAgent string
}

// Client sends JSON requests to the storefront backend and normalizes every
// failure into a *NormalizedError. It performs no retries and no
// deduplication; callers compose those explicitly.
type Client struct {
	baseURL   string
	http      *http.Client
	creds     *Credentials
	limiter   *rate.Limiter
	metrics   *metrics.Recorder
	log       zerolog.Logger
	userAgent string
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, sferr.New(sferr.CodeClientRequestInvalid, "invalid base URL",
			sferr.Field("base_url", opts.BaseURL))
	}

	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.Timeout
		if hc.Timeout <= 0 {
			hc.Timeout = DefaultTimeout
		}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, sferr.Wrap(err, sferr.CodeInternalFailure, "creating cookie jar")
		}
		hc.Jar = jar
	}
	if opts.Tracing {
		rt := hc.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(rt)
	}

	creds := opts.Credentials
	if creds == nil {
		creds = NewCredentials()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "storefront-client"
	}

	return &Client{
		baseURL:   base,
		http:      &hc,
		creds:     creds,
		limiter:   limiter,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		userAgent: ua,
	}, nil
}

// BaseURL returns the backend origin the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Credentials returns the credential set injected into requests.
func (c *Client) Credentials() *Credentials { return c.creds }

// RequestOption customizes a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header   http.Header
	query    url.Values
	route    string
	fallback string
}

// WithHeader sets a request header. Headers set here take precedence over
// the cached auth headers.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) { rc.header.Set(key, value) }
}

func WithQuery(key, value string) RequestOption {
	return func(rc *requestConfig) { rc.query.Set(key, value) }
}

// WithRoute sets the route template used as the metrics label, e.g.
// /api/cart/{productId}. Defaults to the request path.
func WithRoute(route string) RequestOption {
	return func(rc *requestConfig) { rc.route = route }
}

// WithFallbackMessage sets the message used when a failure carries no text.
func WithFallbackMessage(msg string) RequestOption {
	return func(rc *requestConfig) { rc.fallback = msg }
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends one request. body is JSON encoded when non-nil; the response is
// decoded into out when out is non-nil and the body is not empty. The
// returned error, if any, is always a *NormalizedError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	rc := requestConfig{header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.route == "" {
		rc.route = path
		if idx := strings.IndexByte(rc.route, '?'); idx >= 0 {
			rc.route = rc.route[:idx]
		}
	}
	if rc.fallback == "" {
		rc.fallback = fmt.Sprintf("%s %s failed", method, rc.route)
	}

	req, err := c.newRequest(ctx, method, path, body, rc)
	if err != nil {
		return Normalize(err, rc.fallback)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Normalize(sferr.Wrap(err, sferr.CodeClientRateExceeded, "client rate limit"), rc.fallback)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, rc.route, 0, start, err)
		return Normalize(err, rc.fallback)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(method, rc.route, resp.StatusCode, start, err)
	if err != nil {
		return Normalize(err, rc.fallback)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Normalize(&ResponseError{
			Method:     method,
			Path:       rc.route,
			StatusCode: resp.StatusCode,
			Body:       raw,
		}, rc.fallback)
	}
	if applicationFailure(raw) {
		return Normalize(&ResponseError{
			Method:      method,
			Path:        rc.route,
			StatusCode:  resp.StatusCode,
			Body:        raw,
			Application: true,
		}, rc.fallback)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return Normalize(sferr.Wrap(err, sferr.CodeTransportResponseInvalid, "invalid response body",
			sferr.FieldStatus(resp.StatusCode)), rc.fallback)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, rc requestConfig) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, sferr.Wrap(err, sferr.CodeClientRequestInvalid, "invalid request path",
			sferr.Field("path", path))
	}
	if len(rc.query) > 0 {
		q := u.Query()
		for k, vs := range rc.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, sferr.Wrap(err, sferr.CodeClientRequestInvalid, "encoding request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, sferr.Wrap(err, sferr.CodeClientRequestInvalid, "building request")
	}

	for k, vs := range rc.header {
		req.Header[k] = vs
	}
	c.creds.apply(req)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *Client) observe(method, route string, status int, start time.Time, err error) {
	d := time.Since(start)
	c.metrics.ObserveRequest(method, route, status, d)

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("route", route).
		Int("status", status).
		Dur("duration", d).
		Msg("backend request")
}
