// Package network implements the HTTP client used to download post images.
package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HTTPError reports a response with a status other than 200 OK.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d when downloading %s", e.StatusCode, e.URL)
}

// Options configures a Client.
type Options struct {
	// Timeout bounds a whole request. Zero leaves the transport default in place.
	Timeout time.Duration
	// UserAgent is sent with every request when non-empty.
	UserAgent string
	// Interval is the minimum spacing between requests to the same host. Zero disables limiting.
	Interval time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client performs single GET requests with per-host rate limiting.
type Client struct {
	httpClient *http.Client
	userAgent  string
	interval   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient constructs a Client from the provided options.
func NewClient(opts Options) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		userAgent:  opts.UserAgent,
		interval:   opts.Interval,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Fetch downloads the body at rawURL. Any status other than 200 is returned as *HTTPError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	if limiter := c.limiterFor(parsed.Hostname()); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return body, nil
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	if c.interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, ok := c.limiters[host]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(c.interval), 1)
	c.limiters[host] = limiter
	return limiter
}
