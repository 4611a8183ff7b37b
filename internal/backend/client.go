// Package backend is the HTTP client for the pricing backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// Recorder observes completed backend calls.
type Recorder interface {
	ObserveBackend(method, endpoint string, status int, elapsed time.Duration)
}

// Client wraps interactions with the pricing backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
	token      string
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying transport; used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

// WithRecorder attaches a metrics recorder.
func (c *Client) WithRecorder(r Recorder) *Client {
	cp := *c
	cp.recorder = r
	return &cp
}

// WithToken returns a copy of the client that sends the bearer token on
// every request. An empty token yields an anonymous client.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token this client sends, if any.
func (c *Client) Token() string {
	return c.token
}

// Get issues a GET and decodes the JSON response into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

// PostForm issues a form-encoded POST (the OAuth2 password grant uses it).
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, path, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, path string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req.Method, path, 0, start)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(req.Method, path, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method: req.Method,
			Path:   stripQuery(path),
			Status: resp.StatusCode,
			Detail: parseDetail(raw),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("backend: decode %s %s: %w", req.Method, path, err)
	}
	return nil
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveBackend(method, Endpoint(path), status, time.Since(start))
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// Endpoint collapses ids in path so it can be used as a metric label,
// e.g. "/products/42" becomes "/products/{id}".
func Endpoint(path string) string {
	path = stripQuery(path)
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/{id}$1")
	}
	return path
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// ProductPath returns the resource path of one product.
func ProductPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
