package evd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API defines the queue operations the Enhanced Video Downloader server
// exposes. It is implemented by *Client and can be used for testing.
type API interface {
	FetchStatus(ctx context.Context) (QueueStatus, error)
	Add(ctx context.Context, req AddRequest) Result
	Remove(ctx context.Context, id string) Result
	Reorder(ctx context.Context, order []string) Result
	Pause(ctx context.Context, id string) Result
	Resume(ctx context.Context, id string) Result
	SetPriority(ctx context.Context, id string, priority int) Result
	ForceStart(ctx context.Context, id string) Result
	PostHistory(ctx context.Context, body any) Result
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Result is the outcome of a queue mutation. Application-level failures
// (server not configured, HTTP errors, semantic failures in a 2xx body)
// are reported here rather than as Go errors so callers can always render
// the message.
type Result struct {
	Success bool
	Message string
	Data    map[string]any
}

// Client talks to the Enhanced Video Downloader server's HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultUserAgent = "evdq/0.1"

	// The extension leaves request timeouts unspecified; a hung server
	// must not wedge the UI, so every request carries a hard cap.
	requestTimeout = 5 * time.Second

	msgServerNotAvailable = "Server not available"
)

// NewClient builds a Client for the server listening on the given local
// port. A zero or negative port produces an unconfigured client whose
// operations all report "Server not available" without touching the network.
func NewClient(port int) *Client {
	c := &Client{
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}
	if port > 0 {
		c.baseURL = &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", port)}
	}
	return c
}

// NewClientURL builds a Client against an explicit base URL. Used by tests
// and non-localhost deployments.
func NewClientURL(base string) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return NewClient(0), nil
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", base, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}, nil
}

func (c *Client) configured() bool {
	return c != nil && c.baseURL != nil
}

// AddRequest carries the parameters for enqueueing a new download.
type AddRequest struct {
	URL              string `json:"url"`
	Quality          string `json:"quality,omitempty"`
	Format           string `json:"format,omitempty"`
	DownloadPlaylist bool   `json:"download_playlist,omitempty"`
	PageTitle        string `json:"page_title,omitempty"`
}

// FetchStatus retrieves and normalizes the full queue snapshot.
func (c *Client) FetchStatus(ctx context.Context) (QueueStatus, error) {
	if !c.configured() {
		return EmptyStatus(), fmt.Errorf("server not available")
	}
	rel := &url.URL{Path: "/api/status", RawQuery: "include_queue=1"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(rel).String(), nil)
	if err != nil {
		return EmptyStatus(), fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return EmptyStatus(), fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return EmptyStatus(), fmt.Errorf("api /api/status returned status %d", resp.StatusCode)
	}
	status, err := ParseStatus(resp.Body)
	if err != nil {
		return EmptyStatus(), fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// Add enqueues a new download.
func (c *Client) Add(ctx context.Context, req AddRequest) Result {
	return c.post(ctx, "/api/download", req)
}

// Remove takes an item out of the queue. The server splits removal across
// two endpoints: queued items answer on /remove, active ones on /cancel.
// Either a 2xx or a 404 (already gone) counts as success; failure is
// reported only when both endpoints refuse.
func (c *Client) Remove(ctx context.Context, id string) Result {
	if !c.configured() {
		return Result{Message: msgServerNotAvailable}
	}
	paths := []string{
		fmt.Sprintf("/api/queue/%s/remove", url.PathEscape(id)),
		fmt.Sprintf("/api/download/%s/cancel", url.PathEscape(id)),
	}
	last := Result{Message: "Remove failed"}
	for _, path := range paths {
		code, body, err := c.doPost(ctx, path, nil)
		if err != nil {
			last = Result{Message: networkMessage(err)}
			continue
		}
		if code == http.StatusNotFound || (code >= 200 && code < 300) {
			return Result{Success: true, Data: decodeBody(body)}
		}
		last = Result{Message: serverErrorMessage(code, body)}
	}
	return last
}

// Reorder replaces the queued sequence with the given id order.
func (c *Client) Reorder(ctx context.Context, order []string) Result {
	return c.post(ctx, "/api/queue/reorder", map[string]any{"order": order})
}

// Pause suspends an active download.
func (c *Client) Pause(ctx context.Context, id string) Result {
	return c.post(ctx, fmt.Sprintf("/api/download/%s/pause", url.PathEscape(id)), nil)
}

// Resume restarts a paused download.
func (c *Client) Resume(ctx context.Context, id string) Result {
	return c.post(ctx, fmt.Sprintf("/api/download/%s/resume", url.PathEscape(id)), nil)
}

// SetPriority adjusts a download's scheduling priority.
func (c *Client) SetPriority(ctx context.Context, id string, priority int) Result {
	return c.post(ctx, fmt.Sprintf("/api/download/%s/priority", url.PathEscape(id)), map[string]any{"priority": priority})
}

// ForceStart promotes a queued item to start immediately.
func (c *Client) ForceStart(ctx context.Context, id string) Result {
	return c.post(ctx, fmt.Sprintf("/api/queue/%s/force-start", url.PathEscape(id)), nil)
}

// PostHistory mirrors a history entry (or a clear action) to the server.
// The caller treats this as best-effort.
func (c *Client) PostHistory(ctx context.Context, body any) Result {
	return c.post(ctx, "/api/history", body)
}

// post issues a JSON POST and folds every failure mode into a Result.
func (c *Client) post(ctx context.Context, path string, body any) Result {
	if !c.configured() {
		return Result{Message: msgServerNotAvailable}
	}
	code, respBody, err := c.doPost(ctx, path, body)
	if err != nil {
		return Result{Message: networkMessage(err)}
	}
	if code < 200 || code >= 300 {
		return Result{Message: serverErrorMessage(code, respBody)}
	}
	payload := decodeBody(respBody)
	if st, _ := payload["status"].(string); st == "success" || st == "queued" {
		return Result{Success: true, Data: payload}
	}
	if msg, _ := payload["message"].(string); msg != "" {
		return Result{Message: msg, Data: payload}
	}
	return Result{Message: "Request failed", Data: payload}
}

func (c *Client) doPost(ctx context.Context, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	rel := &url.URL{Path: path}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.ResolveReference(rel).String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func decodeBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}

func serverErrorMessage(code int, body []byte) string {
	return fmt.Sprintf("Server error: %d - %s", code, strings.TrimSpace(string(body)))
}

func networkMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Network error"
	}
	return msg
}
