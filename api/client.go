// Package api implements the HTTP client for the intake backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/openclinic/intake-client/stream"
)

// ErrRateLimited is returned when the chat endpoint answers 429. Callers
// handle it with a lighter touch than a generic transport failure.
var ErrRateLimited = errors.New("rate limited")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the backend at baseURL. No timeout is set on
// the underlying http.Client: a chat stream stays open for the whole turn
// and a stalled stream is indistinguishable from a slow one.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Start mints a new session. Not safe to retry blindly: every call creates a
// fresh identifier. An empty userName is sent as null.
func (c *Client) Start(ctx context.Context, patientID, userName string) (string, error) {
	request := startRequest{PatientID: patientID}
	if userName != "" {
		request.UserName = &userName
	}

	var response startResponse
	if err := c.postJSON(ctx, "/api/v1/intake/start", request, &response); err != nil {
		return "", err
	}
	if response.SessionToken == "" {
		return "", fmt.Errorf("start response missing session_token")
	}
	return response.SessionToken, nil
}

// Recover fetches the transcript of an existing session. Safe to repeat.
func (c *Client) Recover(ctx context.Context, sessionID string) ([]HistoryMessage, error) {
	path := fmt.Sprintf("/api/v1/intake/session/%s/recover", url.PathEscape(sessionID))

	var response recoverResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.ConversationHistory, nil
}

// Chat submits a prompt (empty to request the opening message) and feeds the
// resulting event stream to emit until the transport closes. A 429 status is
// reported as ErrRateLimited.
func (c *Client) Chat(ctx context.Context, sessionToken, prompt string, emit stream.Handler) error {
	jsonData, err := json.Marshal(chatRequest{SessionToken: sessionToken, Prompt: prompt})
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/intake/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("chat request: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return stream.Decode(resp.Body, emit)
}

// Reports fetches report documents after the fact, the fallback for sessions
// whose stream carried none. Safe to repeat.
func (c *Client) Reports(ctx context.Context, sessionID string, email bool) (*ReportBundle, error) {
	path := fmt.Sprintf("/api/v1/intake/session/%s/reports", url.PathEscape(sessionID))
	if email {
		path += "?email=true"
	}

	var bundle ReportBundle
	if err := c.getJSON(ctx, path, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// SubmitFeedback posts the end-of-session feedback record.
func (c *Client) SubmitFeedback(ctx context.Context, feedback Feedback) error {
	return c.postJSON(ctx, "/api/v1/feedback/submit", feedback, nil)
}

// Health probes backend liveness. The response body is ignored.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
