// Package api is the client for the remote capsule REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultFriendsTTL = 5 * time.Minute
	defaultUserAgent  = "ecapsule"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 1 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the API origin, e.g. https://capsules.example.com
	BaseURL string

	// Token is the bearer access token; empty for unauthenticated calls (login)
	Token string

	// Timeout bounds each request. 0 means 30s.
	Timeout time.Duration

	// FriendsTTL is how long a friends list is cached. 0 means 5m.
	FriendsTTL time.Duration

	// HTTPClient overrides the underlying client (tests use httptest clients).
	HTTPClient *http.Client

	// Logger receives request logs. nil means slog.Default().
	Logger *slog.Logger

	// UserAgent overrides the User-Agent header.
	UserAgent string
}

// Client talks to the remote capsule API.
type Client struct {
	baseURL   *url.URL
	token     string
	client    *http.Client
	base      http.RoundTripper
	cache     *cache.Cache
	logger    *slog.Logger
	userAgent string
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := opts.FriendsTTL
	if ttl <= 0 {
		ttl = defaultFriendsTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := http.Client{Timeout: timeout}
	base := http.DefaultTransport
	if opts.HTTPClient != nil {
		httpClient = *opts.HTTPClient
		if httpClient.Timeout == 0 {
			httpClient.Timeout = timeout
		}
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
	}

	c := &Client{
		baseURL:   u,
		token:     opts.Token,
		client:    &httpClient,
		base:      base,
		cache:     cache.New(ttl, 2*ttl),
		logger:    logger,
		userAgent: userAgent,
	}
	httpClient.Transport = c
	return c, nil
}

// RoundTrip stamps common headers and logs the exchange.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	start := time.Now()
	resp, err := c.base.RoundTrip(req)
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", req.Header.Get("X-Request-Id"),
		"duration", time.Since(start),
	}
	if err != nil {
		c.logger.Debug("api request failed", append(attrs, "error", err)...)
		return nil, err
	}
	c.logger.Debug("api request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}

// newRequest builds a request against the API origin.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, requestID string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do performs req and decodes a 2xx JSON body into out (if non-nil).
// 422 responses become *FieldErrors; other failures become *StatusError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode == http.StatusUnprocessableEntity {
		fe := &FieldErrors{Status: resp.StatusCode}
		if err := json.Unmarshal(body, fe); err == nil && len(fe.Fields) > 0 {
			return fe
		}
	}

	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &StatusError{Status: resp.StatusCode, Message: payload.Message}
}
