// Package tracker talks to Jira and Confluence over their REST APIs.
//
// Client handles the base URL, credentials, proxy and transient-error
// retries. Jira and Confluence adapt the two products' search and content
// endpoints to the Query/Page/Document model the recon pipeline consumes.
package tracker

import (
	"context"
	"crypto/tls"
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

var (
	ErrNoCredentials  = errors.New("tracker: credentials required")
	ErrInvalidBaseURL = errors.New("tracker: base URL must be an absolute http(s) URL")
	ErrLoginFailed    = errors.New("tracker: login failed")
	ErrEmptyQuery     = errors.New("tracker: query needs a keyword or a scope")
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker: GET %s: http %d", e.Path, e.Code)
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	Proxy    string // optional http(s) proxy URL
	Username string
	Password string
	Token    string // bearer token; takes precedence over Username/Password

	Timeout    time.Duration // per request. Default: 30s.
	MaxRetries int           // retries on 5xx and network errors. Default: 5, negative disables.
	Backoff    time.Duration // first retry wait, doubled each attempt. Default: 100ms.
	MaxBytes   int64         // response body cap. Default: 32MB.
	UserAgent  string
	Insecure   bool // skip TLS verification, for intercepting proxies

	// HTTPClient replaces the default client. Proxy, Timeout and Insecure
	// are ignored when set.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "recon/1.0"
	}
}

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Proxy != "" {
			pu, err := url.Parse(cfg.Proxy)
			if err != nil || pu.Host == "" {
				return nil, fmt.Errorf("tracker: invalid proxy %q", cfg.Proxy)
			}
			tr.Proxy = http.ProxyURL(pu)
		}
		if cfg.Insecure {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for proxies
		}
		hc = &http.Client{Timeout: cfg.Timeout, Transport: tr}
	}

	return &Client{base: base, http: hc, cfg: cfg, logger: logger}, nil
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base.String() }

// Host returns the host part of the base URL, used to lay out downloads.
func (c *Client) Host() string { return c.base.Hostname() }

// Authenticated reports whether any credential is configured.
func (c *Client) Authenticated() bool {
	return c.cfg.Token != "" || c.cfg.Username != ""
}

// Get performs a GET on path relative to the base URL. Transient failures
// (network errors, 500, 502, 503, 504) are retried with exponential
// backoff. The final status and body are returned; err is non-nil only
// when no response could be obtained.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	u := c.resolve(path, params)

	var lastErr error
	for attempt := 0; ; attempt++ {
		status, body, err := c.do(ctx, u)
		if err == nil && !retryable(status) {
			return status, body, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = &StatusError{Code: status, Path: path}
		}

		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		if attempt >= c.cfg.MaxRetries {
			if err != nil {
				return 0, nil, err
			}
			return status, body, nil
		}

		wait := c.cfg.Backoff * (1 << uint(attempt))
		c.logger.DebugContext(ctx, "tracker: retrying request",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", lastErr)
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetJSON performs Get and decodes a 200 response into v. Any other
// status is reported as a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) error {
	status, body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &StatusError{Code: status, Path: path}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("tracker: decode %s: %w", path, err)
	}
	return nil
}

// Login checks the credentials against each path in turn and returns the
// display name reported by the first one that answers 200.
func (c *Client) Login(ctx context.Context, paths ...string) (string, error) {
	var errs []error
	for _, p := range paths {
		var who struct {
			DisplayName string `json:"displayName"`
			Name        string `json:"name"`
			Username    string `json:"username"`
		}
		if err := c.GetJSON(ctx, p, nil, &who); err != nil {
			errs = append(errs, err)
			continue
		}
		switch {
		case who.DisplayName != "":
			return who.DisplayName, nil
		case who.Name != "":
			return who.Name, nil
		default:
			return who.Username, nil
		}
	}
	return "", fmt.Errorf("%w: %w", ErrLoginFailed, errors.Join(errs...))
}

func (c *Client) resolve(path string, params url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, u string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("tracker: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	switch {
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	case c.cfg.Username != "":
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("tracker: http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("tracker: read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
