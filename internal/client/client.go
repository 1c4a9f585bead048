package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
)

// ErrJobNotFound is returned when the server does not know the job ID.
// The poller treats it as terminal and stops polling.
var ErrJobNotFound = errors.New("job not found on server")

// Client is a typed HTTP client for the transcription service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client with a sane request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit sends a job submission and returns the assigned job ID.
func (c *Client) Submit(ctx context.Context, req jobs.SubmitRequest) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	if err := c.call(ctx, http.MethodPost, "/submit", req, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("server accepted submission without a job id")
	}
	return out.JobID, nil
}

// Status fetches the polling view for a job.
func (c *Client) Status(ctx context.Context, jobID string) (jobs.StatusView, error) {
	var out jobs.StatusView
	err := c.call(ctx, http.MethodGet, "/status/"+jobID, nil, &out)
	return out, err
}

// Result fetches the full result payload.
func (c *Client) Result(ctx context.Context, jobID string) (jobs.ResultView, error) {
	var out jobs.ResultView
	err := c.call(ctx, http.MethodGet, "/result/"+jobID, nil, &out)
	return out, err
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.call(ctx, http.MethodPost, "/cancel/"+jobID, nil, nil)
}

// Retry resubmits a failed job and returns the new job ID.
func (c *Client) Retry(ctx context.Context, jobID string) (string, error) {
	var out struct {
		NewJobID string `json:"new_job_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/retry/"+jobID, nil, &out); err != nil {
		return "", err
	}
	return out.NewJobID, nil
}

// call performs one JSON round trip and maps error statuses.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
