// Package commands is the HTTP JSON client of the stayreal command API.
package commands

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
	"time"

	"github.com/stayreal/companion/internal/facade"
	"github.com/stayreal/companion/internal/models"
)

// Error is a failed command. Message carries the server's error text.
type Error struct {
	Command string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Command, e.Status)
	}
	return e.Message
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client calls the command API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

var _ facade.Backend = (*Client)(nil)

// NewClient validates the base URL and returns a client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("commands: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("commands: base url %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		base:  base,
		token: opts.Token,
		http:  &http.Client{Timeout: timeout, Transport: opts.Transport},
	}, nil
}

// GetSettings implements facade.Backend.
func (c *Client) GetSettings(ctx context.Context) (models.LoggerSettings, error) {
	var settings models.LoggerSettings
	err := c.do(ctx, "get settings", http.MethodGet, "/api/v1/logger/settings", nil, &settings)
	return settings, err
}

// SaveSettings implements facade.Backend.
func (c *Client) SaveSettings(ctx context.Context, settings models.LoggerSettings) error {
	return c.do(ctx, "save settings", http.MethodPut, "/api/v1/logger/settings", settings, nil)
}

// SelectSaveDirectory implements facade.Backend.
func (c *Client) SelectSaveDirectory(ctx context.Context) (*string, error) {
	var resp struct {
		Directory *string `json:"directory"`
	}
	if err := c.do(ctx, "select save directory", http.MethodPost, "/api/v1/logger/directory", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Directory, nil
}

// SavePost implements facade.Backend.
func (c *Client) SavePost(ctx context.Context, req models.SavePostRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "save post", http.MethodPost, "/api/v1/logger/posts", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListSavedPosts implements facade.Backend.
func (c *Client) ListSavedPosts(ctx context.Context) ([]models.SavedPost, error) {
	var posts []models.SavedPost
	err := c.do(ctx, "list saved posts", http.MethodGet, "/api/v1/logger/posts", nil, &posts)
	return posts, err
}

// ListSavedPostsByUser implements facade.Backend.
func (c *Client) ListSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error) {
	var posts []models.SavedPost
	path := "/api/v1/logger/posts?" + url.Values{"user_id": {userID}}.Encode()
	err := c.do(ctx, "list user posts", http.MethodGet, path, nil, &posts)
	return posts, err
}

// DeleteSavedPost implements facade.Backend.
func (c *Client) DeleteSavedPost(ctx context.Context, postID string) error {
	return c.do(ctx, "delete post", http.MethodDelete, "/api/v1/logger/posts/"+url.PathEscape(postID), nil, nil)
}

// Stats implements facade.Backend.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	stats := map[string]int{}
	err := c.do(ctx, "get stats", http.MethodGet, "/api/v1/logger/stats", nil, &stats)
	return stats, err
}

// SubmitFeed queues a feed snapshot for auto-saving on the backend.
func (c *Client) SubmitFeed(ctx context.Context, feed models.Feed) error {
	return c.do(ctx, "submit feed", http.MethodPost, "/api/v1/logger/feed", feed, nil)
}

// BalancesSettings returns the balances configuration.
func (c *Client) BalancesSettings(ctx context.Context) (models.BalancesSettings, error) {
	var settings models.BalancesSettings
	err := c.do(ctx, "get balances settings", http.MethodGet, "/api/v1/balances/settings", nil, &settings)
	return settings, err
}

// SaveBalancesSettings replaces the balances configuration.
func (c *Client) SaveBalancesSettings(ctx context.Context, settings models.BalancesSettings) error {
	return c.do(ctx, "save balances settings", http.MethodPut, "/api/v1/balances/settings", settings, nil)
}

// DownloadBalances writes one balance record per configured person and returns the file names.
func (c *Client) DownloadBalances(ctx context.Context) ([]string, error) {
	var resp struct {
		Files []string `json:"files"`
	}
	if err := c.do(ctx, "download balances", http.MethodPost, "/api/v1/balances/download", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// ListBalances returns the balance files in the configured folder.
func (c *Client) ListBalances(ctx context.Context) ([]string, error) {
	var files []string
	err := c.do(ctx, "list balances", http.MethodGet, "/api/v1/balances", nil, &files)
	return files, err
}

func (c *Client) do(ctx context.Context, command, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", command, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", command, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &Error{Command: command, Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", command, err)
	}
	return nil
}
