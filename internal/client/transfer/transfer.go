// Package transfer is the HTTP client of the deployment server API.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"devver/internal/models"
)

// Error is a failed API call. StatusCode is zero when no response arrived.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "server returned %d", e.StatusCode)
	} else {
		b.WriteString("request failed")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL. There is no request
// timeout: a deploy blocks until the server finishes.
func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{}}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Deploy sends a change set. On a failed deploy the decoded result is
// returned together with an *Error carrying the server's message.
func (c *Client) Deploy(ctx context.Context, req models.DeployRequest, cfg models.DeploymentConfig) (models.DeployResult, error) {
	var result models.DeployResult
	err := c.do(ctx, http.MethodPost, "/api/deploy", models.DeployBody{Request: req, Config: cfg}, &result)
	return result, err
}

func (c *Client) Setup(ctx context.Context, cfg models.DeploymentConfig) (models.SetupResult, error) {
	var result models.SetupResult
	err := c.do(ctx, http.MethodPost, "/api/setup", cfg, &result)
	return result, err
}

// Branches lists the project's deployed branches, most recent first.
func (c *Client) Branches(ctx context.Context, project string) ([]models.BranchSummary, error) {
	var resp models.BranchListResponse
	if err := c.do(ctx, http.MethodGet, "/api/branches/"+url.PathEscape(project), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Branches, nil
}

func (c *Client) Deployments(ctx context.Context, project string) ([]models.DeploymentInfo, error) {
	var resp models.DeploymentsListResponse
	if err := c.do(ctx, http.MethodGet, "/api/deployments/"+url.PathEscape(project), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deployments, nil
}

func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return &Error{StatusCode: http.StatusOK, Message: "unexpected status " + resp.Status}
	}
	return nil
}

// do sends body as JSON and decodes the response into out. Error bodies are
// decoded into out as well, so callers can inspect a failed result.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Message: "could not reach " + c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	decodeErr := json.Unmarshal(data, out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(data, decodeErr)}
	}
	if decodeErr != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "malformed response body", Err: decodeErr}
	}
	return nil
}

func errorMessage(data []byte, decodeErr error) string {
	if decodeErr == nil {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			if body.Message != "" {
				return body.Message
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	return strings.TrimSpace(string(data))
}
