// Package client is a Go client for the queue monitor HTTP API
package client

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

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Message)
}

// Preferences mirrors the operator preferences payload
type Preferences struct {
	Search     string `json:"search"`
	SortCalls  string `json:"sortCalls"`
	SortStatus string `json:"sortStatus"`
}

// Client provides interface to the monitor API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new client; token may be empty when auth is skipped
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Board retrieves the last published board
func (c *Client) Board(ctx context.Context) (*types.Board, error) {
	var b types.Board
	if err := c.do(ctx, http.MethodGet, "/api/board", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Refresh asks for an immediate processing pass
func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/refresh", nil, nil)
}

// Presence reports for each name whether a matching entity is connected
func (c *Client) Presence(ctx context.Context, names []string) ([]types.PresenceResult, error) {
	var resp struct {
		Results []types.PresenceResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/presence", map[string][]string{"names": names}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// History retrieves the lifecycle log of one entity; empty day means today
func (c *Client) History(ctx context.Context, name, day string) ([]types.HistoryEntry, error) {
	var entries []types.HistoryEntry
	path := "/api/entities/" + url.PathEscape(name) + "/history" + dayQuery(day)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Aggregates retrieves the per-entity totals of one day
func (c *Client) Aggregates(ctx context.Context, day string) (map[string]types.DayTotals, error) {
	totals := make(map[string]types.DayTotals)
	if err := c.do(ctx, http.MethodGet, "/api/aggregates"+dayQuery(day), nil, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// Days lists every day with recorded data
func (c *Client) Days(ctx context.Context) ([]string, error) {
	var days []string
	if err := c.do(ctx, http.MethodGet, "/api/days", nil, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// SetMuted toggles the global alert mute
func (c *Client) SetMuted(ctx context.Context, muted bool) error {
	return c.do(ctx, http.MethodPost, "/api/alerts/mute", map[string]bool{"muted": muted}, nil)
}

// Snooze withholds alerts for the given minutes and returns the deadline.
// Zero minutes clears the snooze and returns the zero time.
func (c *Client) Snooze(ctx context.Context, minutes int) (time.Time, error) {
	var resp struct {
		Snoozed bool      `json:"snoozed"`
		Until   time.Time `json:"until"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/alerts/snooze", map[string]int{"minutes": minutes}, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.Until, nil
}

// Favorites lists the pinned entities
func (c *Client) Favorites(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SetFavorite pins or unpins an entity
func (c *Client) SetFavorite(ctx context.Context, name string, on bool) error {
	method := http.MethodPut
	if !on {
		method = http.MethodDelete
	}
	return c.do(ctx, method, "/api/favorites/"+url.PathEscape(name), nil, nil)
}

// Preferences retrieves the search filter and sort orders
func (c *Client) Preferences(ctx context.Context) (*Preferences, error) {
	var p Preferences
	if err := c.do(ctx, http.MethodGet, "/api/preferences", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPreferences replaces the search filter and sort orders
func (c *Client) SetPreferences(ctx context.Context, p Preferences) error {
	return c.do(ctx, http.MethodPut, "/api/preferences", p, nil)
}

// Reset clears all monitor state (admin only)
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/admin/reset", nil, nil)
}

// Export archives the report of one day and returns its location (admin only)
func (c *Client) Export(ctx context.Context, day string) (string, error) {
	var resp struct {
		Location string `json:"location"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/export"+dayQuery(day), nil, &resp); err != nil {
		return "", err
	}
	return resp.Location, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func dayQuery(day string) string {
	if day == "" {
		return ""
	}
	return "?day=" + url.QueryEscape(day)
}
