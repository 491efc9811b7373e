// Package api is the HTTP client used by the nudge CLI to drive a running
// gateway.
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
	"time"

	"github.com/dohr-michael/nudge/internal/ledger"
	"github.com/dohr-michael/nudge/internal/tasks"
	"github.com/dohr-michael/nudge/internal/tracker"
)

// ErrNotFound mirrors a 404 from the gateway.
var ErrNotFound = errors.New("not found")

// Error is a non-2xx gateway response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %d: %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client calls the gateway REST API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a client for the gateway at baseURL (e.g. http://127.0.0.1:18440).
func New(baseURL, token string) *Client {
	return &Client{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// StreakResult is the streak with rendered bars, one per day.
type StreakResult struct {
	tracker.StreakReport
	Bars []string `json:"bars"`
}

func reportPath(key tasks.Key, suffix string) string {
	return "/api/reports/" + url.PathEscape(key.GroupID) + "/" + url.PathEscape(key.UserID) + suffix
}

func deedPath(key tasks.Key, suffix string) string {
	return "/api/deeds/" + url.PathEscape(key.GroupID) + "/" + url.PathEscape(key.UserID) + suffix
}

func (c *Client) StartTask(ctx context.Context, key tasks.Key, theme, deadline string) (tracker.Status, error) {
	var st tracker.Status
	err := c.do(ctx, http.MethodPost, reportPath(key, ""), map[string]string{"theme": theme, "deadline": deadline}, &st)
	return st, err
}

func (c *Client) Status(ctx context.Context, key tasks.Key) (tracker.Status, error) {
	var st tracker.Status
	err := c.do(ctx, http.MethodGet, reportPath(key, ""), nil, &st)
	return st, err
}

func (c *Client) SetTheme(ctx context.Context, key tasks.Key, theme string) (tracker.Status, error) {
	var st tracker.Status
	err := c.do(ctx, http.MethodPut, reportPath(key, "/theme"), map[string]string{"theme": theme}, &st)
	return st, err
}

func (c *Client) SetDeadline(ctx context.Context, key tasks.Key, deadline string) (tracker.Status, error) {
	var st tracker.Status
	err := c.do(ctx, http.MethodPut, reportPath(key, "/deadline"), map[string]string{"deadline": deadline}, &st)
	return st, err
}

func (c *Client) LogProgress(ctx context.Context, key tasks.Key, note string) (tasks.ProgressNote, error) {
	var n tasks.ProgressNote
	err := c.do(ctx, http.MethodPost, reportPath(key, "/progress"), map[string]string{"note": note}, &n)
	return n, err
}

func (c *Client) MarkMilestone(ctx context.Context, key tasks.Key, name string) (map[tasks.Milestone]bool, error) {
	var out map[tasks.Milestone]bool
	err := c.do(ctx, http.MethodPost, reportPath(key, "/milestones/"+url.PathEscape(name)), nil, &out)
	return out, err
}

// AttachThread returns the thread in effect, which is the earlier one if
// the task already had a thread.
func (c *Client) AttachThread(ctx context.Context, key tasks.Key, threadID string) (string, error) {
	var out struct {
		ThreadID string `json:"thread_id"`
	}
	err := c.do(ctx, http.MethodPut, reportPath(key, "/thread"), map[string]string{"thread_id": threadID}, &out)
	return out.ThreadID, err
}

func (c *Client) RecordDeed(ctx context.Context, key tasks.Key, text string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, deedPath(key, ""), map[string]string{"text": text}, &out)
	return out.Count, err
}

func (c *Client) Today(ctx context.Context, key tasks.Key) (tracker.TodayReport, error) {
	var out tracker.TodayReport
	err := c.do(ctx, http.MethodGet, deedPath(key, "/today"), nil, &out)
	return out, err
}

func (c *Client) Week(ctx context.Context, key tasks.Key) ([]ledger.DayCount, error) {
	var out []ledger.DayCount
	err := c.do(ctx, http.MethodGet, deedPath(key, "/week"), nil, &out)
	return out, err
}

func (c *Client) Streak(ctx context.Context, key tasks.Key) (StreakResult, error) {
	var out StreakResult
	err := c.do(ctx, http.MethodGet, deedPath(key, "/streak"), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &eb) != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: eb.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
