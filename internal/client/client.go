package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiPrefix       = "/api"
	maxResponseSize = 4 << 20 // 4MB
)

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
	// HTTPClient overrides the default instrumented client. Its Jar, when
	// nil, is replaced with a fresh cookie jar.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Request describes one backend call. Path is relative to the API root, e.g.
// "/cart/ci_1".
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Client is the single place outgoing requests are built. Every call carries
// the current Credentials and the cookie jar.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[reply]
	logger  *slog.Logger

	mu    sync.RWMutex
	creds CredentialsSource
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		http:    httpClient,
		timeout: cfg.Timeout,
		breaker: newBreaker(cfg.Breaker, logger),
		logger:  logger,
		creds:   StaticCredentials(""),
	}, nil
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[reply] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: countsAsSuccess,
	})
}

// countsAsSuccess keeps client-side mistakes and cancellations from tripping
// the breaker. Only transport failures and 5xx count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}

// UseCredentials sets where bearer tokens come from.
func (c *Client) UseCredentials(src CredentialsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src == nil {
		src = StaticCredentials("")
	}
	c.creds = src
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.Credentials()
}

// Cookies returns the cookies the jar would send to the backend.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil
	}
	return c.http.Jar.Cookies(u)
}

// ForgetCookies expires every cookie the jar holds for the backend.
func (c *Client) ForgetCookies() {
	u, err := url.Parse(c.base)
	if err != nil {
		return
	}
	cookies := c.http.Jar.Cookies(u)
	if len(cookies) == 0 {
		return
	}
	expired := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(u, expired)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Response is what a call returned besides the decoded body.
type Response struct {
	Cookies []*http.Cookie
}

// Cookie returns the value of the named cookie the backend set, if any.
// A cookie being deleted counts as set to "".
func (r Response) Cookie(name string) (string, bool) {
	for _, ck := range r.Cookies {
		if ck.Name != name {
			continue
		}
		if ck.MaxAge < 0 {
			return "", true
		}
		return ck.Value, true
	}
	return "", false
}

type reply struct {
	body    []byte
	cookies []*http.Cookie
}

// Do sends r and decodes a JSON answer into out when out is non-nil.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	_, err := c.Send(ctx, r, out)
	return err
}

// Send is Do for callers that also need the response cookies.
func (c *Client) Send(ctx context.Context, r Request, out any) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	rep, err := c.breaker.Execute(func() (reply, error) {
		return c.send(req)
	})
	c.logger.Debug("backend call",
		"method", r.Method,
		"path", r.Path,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return Response{}, err
	}

	resp := Response{Cookies: rep.cookies}
	if out == nil || len(bytes.TrimSpace(rep.body)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return resp, fmt.Errorf("decode %s %s response: %w", r.Method, r.Path, err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u, err := url.Parse(c.base + r.Path)
	if err != nil {
		return nil, fmt.Errorf("build url for %s: %w", r.Path, err)
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", r.Method, r.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	c.credentials().apply(req, c.jarHas(u, SessionCookieName))
	return req, nil
}

func (c *Client) jarHas(u *url.URL, name string) bool {
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == name {
			return true
		}
	}
	return false
}

func (c *Client) send(req *http.Request) (reply, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return reply{}, fmt.Errorf("read %s %s response: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply{}, &APIError{Status: resp.StatusCode, Detail: decodeDetail(body)}
	}
	return reply{body: body, cookies: resp.Cookies()}, nil
}
