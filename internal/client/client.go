// Package client is a typed HTTP client for the daemon API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podpipe/internal/api"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base string
	http *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// New constructs a client for the daemon bound at bind (host:port or URL).
func New(bind string, opts ...Option) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Submit asks the daemon to ingest a remote source locator.
func (c *Client) Submit(ctx context.Context, sourceURL, title, description string) (api.SubmitResponse, error) {
	var resp api.SubmitResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/jobs", api.SubmitRequest{
		URL:         sourceURL,
		Title:       title,
		Description: description,
	}, &resp)
	return resp, err
}

// Upload streams a local media file to the daemon.
func (c *Client) Upload(ctx context.Context, path, title, description string) (api.SubmitResponse, error) {
	var resp api.SubmitResponse

	file, err := os.Open(path)
	if err != nil {
		return resp, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return resp, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return resp, fmt.Errorf("read upload: %w", err)
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			return resp, fmt.Errorf("build upload: %w", err)
		}
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return resp, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return resp, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/jobs/upload", &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	err = c.send(req, &resp)
	return resp, err
}

// Job fetches a single job by ID.
func (c *Client) Job(ctx context.Context, id string) (api.Job, error) {
	var job api.Job
	err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// Jobs lists jobs, optionally filtered by state.
func (c *Client) Jobs(ctx context.Context, state string) ([]api.Job, error) {
	path := "/api/jobs"
	if state != "" {
		path += "?state=" + url.QueryEscape(state)
	}
	var resp api.JobListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Cancel cancels a pending job.
func (c *Client) Cancel(ctx context.Context, id string) (api.Job, error) {
	var job api.Job
	err := c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &job)
	return job, err
}

// Retry requeues a failed job.
func (c *Client) Retry(ctx context.Context, id string) (api.Job, error) {
	var job api.Job
	err := c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &job)
	return job, err
}

// ClearJobs removes jobs in the given state ("completed", "failed", or "all").
func (c *Client) ClearJobs(ctx context.Context, state string) (int64, error) {
	path := "/api/jobs"
	if state != "" {
		path += "?state=" + url.QueryEscape(state)
	}
	var resp api.ClearResponse
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Entries lists the published feed entries.
func (c *Client) Entries(ctx context.Context) (api.EntryListResponse, error) {
	var resp api.EntryListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/entries", nil, &resp)
	return resp, err
}

// RemoveEntry deletes a feed entry by ID. It reports whether the entry
// existed; removing an absent entry is not an error.
func (c *Client) RemoveEntry(ctx context.Context, id string) (bool, error) {
	var resp api.RemoveEntryResponse
	err := c.doJSON(ctx, http.MethodDelete, "/api/entries/"+url.PathEscape(id), nil, &resp)
	return resp.Found, err
}

// Health fetches stage readiness. A not-ready daemon answers 503 with the
// same payload, so that case decodes rather than erroring.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("daemon unreachable at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return out, readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Feed fetches the rendered RSS document.
func (c *Client) Feed(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/feed.xml", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
}
