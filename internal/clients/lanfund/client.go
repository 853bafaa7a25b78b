// Package lanfund provides a client for the fund dashboard backend API
package lanfund

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
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
)

const (
	DefaultBaseURL   = "http://127.0.0.1:8311"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	maxBodyBytes = 16 << 20
)

// Client implements interfaces.FundBackend
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter

	loginMu  sync.Mutex
	loggedIn bool
}

var _ interfaces.FundBackend = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCredentials sets the dashboard login
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client. A cookie jar is added if missing.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new backend client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}

	return c
}

// request is a prepared call. The body is kept as bytes so the call can be
// replayed once after a lazy login.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonRequest(method, path string, payload interface{}) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return request{method: method, path: path, body: data, contentType: "application/json"}, nil
}

// do executes req and returns the raw response body for 2xx responses.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	body, status, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.username != "" {
		c.logger.Debug().Str("path", req.path).Msg("Session expired, logging in")
		c.setLoggedIn(false)
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.send(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, responseError(status, req.path, body)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var rdr io.Reader
	if req.body != nil {
		rdr = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, rdr)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	return body, resp.StatusCode, nil
}

// doJSON executes req and decodes the body into out.
func (c *Client) doJSON(ctx context.Context, req request, out interface{}) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Endpoint: req.path, Err: err}
	}
	return nil
}

// doEnvelope executes req, decodes into out and turns success=false into a RejectedError.
func (c *Client) doEnvelope(ctx context.Context, req request, out enveloped) error {
	if err := c.doJSON(ctx, req, out); err != nil {
		return err
	}
	env := out.base()
	if !env.Success {
		return &RejectedError{Endpoint: req.path, Message: env.Message}
	}
	return nil
}

func (c *Client) setLoggedIn(v bool) {
	c.loginMu.Lock()
	c.loggedIn = v
	c.loginMu.Unlock()
}

// Login posts the configured credentials and keeps the session cookie.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.loggedIn {
		return nil
	}
	if c.username == "" {
		return fmt.Errorf("backend login: no credentials configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The backend answers a good login with a redirect and a bad one with
	// the login page, so redirects must not be followed here.
	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusFound, http.StatusSeeOther, http.StatusMovedPermanently, http.StatusTemporaryRedirect:
		c.loggedIn = true
		c.logger.Info().Str("user", c.username).Msg("Logged in to backend")
		return nil
	default:
		return &RejectedError{Endpoint: "/login", Message: "login rejected: check username and password"}
	}
}
