package github

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "GitHub-Timeline-Updates"
	defaultTimeout   = 10 * time.Second
	acceptHeader     = "application/vnd.github.v3+json"

	// maxResponseBytes bounds a single events page; GitHub pages are ~100KB.
	maxResponseBytes = 8 << 20
)

// Config holds what the client needs; it is built from the service
// configuration at startup.
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string

	// Timeout bounds both the TCP connect and the whole request.
	Timeout time.Duration

	// RateLimit paces requests across all goroutines sharing the client,
	// in requests per second. Zero disables pacing.
	RateLimit float64
	RateBurst int

	// HTTPClient overrides the default transport. Tests only.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client issues authenticated GET requests to the GitHub REST API.
// It never retries; a failed call is reported to the caller as a typed error.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient creates a GitHub client. TLS certificate and hostname
// verification are always on; plain HTTP is accepted only for loopback
// hosts (the local mock server and tests).
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if err := checkBaseURL(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   baseURL,
		token:     cfg.Token,
		userAgent: userAgent,
		client:    httpClient,
		limiter:   newLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:    logger.With("component", "github"),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: timeout,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("github: invalid base URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
	}
	return fmt.Errorf("github: API client requires HTTPS (got %q)", raw)
}

// Fetch issues a GET for endpoint, a path relative to the API root such as
// "/users/octocat/events". Path segments must already be escaped.
func (c *Client) Fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Endpoint: endpoint, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	c.logger.Debug("making request", "endpoint", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(endpoint, resp.StatusCode, body)
	}

	var value json.RawMessage
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, &ParseError{Endpoint: endpoint, Err: err}
	}

	return value, nil
}

// Events implements EventSource.
func (c *Client) Events(ctx context.Context, username string, endpoints []string) ([][]json.RawMessage, []error) {
	var (
		streams  [][]json.RawMessage
		failures []error
	)

	for _, name := range endpoints {
		endpoint := fmt.Sprintf("/users/%s/%s", url.PathEscape(username), name)

		body, err := c.Fetch(ctx, endpoint)
		if err != nil {
			failures = append(failures, err)
			continue
		}

		var events []json.RawMessage
		if err := json.Unmarshal(body, &events); err != nil {
			failures = append(failures, &ParseError{Endpoint: endpoint, Err: err})
			continue
		}
		streams = append(streams, events)
	}

	return streams, failures
}

// UserExists implements EventSource. GitHub logins are case-insensitive.
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	body, err := c.Fetch(ctx, "/users/"+url.PathEscape(username))
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return false, &ParseError{Endpoint: "/users/" + username, Err: err}
	}

	return strings.EqualFold(user.Login, username), nil
}
