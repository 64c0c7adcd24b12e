package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"terminus/internal/util"
)

const maxErrorBodyBytes = 4096

// Options configures a Client.
type Options struct {
	BaseURL      string
	SessionToken string
	UserAgent    string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client issues authenticated JSON requests against the management API.
type Client struct {
	baseURL   *url.URL
	session   string
	userAgent string
	http      *http.Client
}

// NewClient validates opts and returns a ready Client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base URL must not be empty")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse api base URL '%s': %w", opts.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent("dev")
	}

	return &Client{
		baseURL:   base,
		session:   opts.SessionToken,
		userAgent: userAgent,
		http:      httpClient,
	}, nil
}

// DefaultUserAgent builds the User-Agent header sent with every request.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("Terminus/%s (%s; %s; go%s)", version, runtime.GOOS, runtime.GOARCH, strings.TrimPrefix(runtime.Version(), "go"))
}

// Authorized reports whether a session token is configured.
func (c *Client) Authorized() bool {
	return c.session != ""
}

// Get decodes the JSON response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out (which may be nil).
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Do performs a single request. path is relative to the base URL.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	if !c.Authorized() {
		return ErrUnauthorized
	}

	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("invalid request path '%s': %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.session)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	util.Log.Debugf("API request %s %s (request id %s)", method, target.Path, requestID)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	util.Log.Debugf("API response %s %s: %d in %v", method, target.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &Error{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}
