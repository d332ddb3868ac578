package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "hookrelay/pkg/logx"
)

// Config configures the upstream client. Token is the bearer credential;
// it is supplied, never obtained or refreshed here.
type Config struct {
	BaseURL    string
	Token      string
	MaxResults int
	Timeout    time.Duration
	Backoff    Backoff
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// ResolveID maps a handle to its stable upstream id. The cache is checked
// first so repeated runs don't burn rate limit on lookups; a fresh result
// is cached before returning.
func (c *Client) ResolveID(ctx context.Context, handle string, cache IdentityCache) (string, error) {
	if id, ok := cache.Identity(handle); ok {
		return id, nil
	}

	u := c.cfg.BaseURL + "/users/by/" + url.PathEscape(handle)
	resp, err := c.getWithBackoff(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return "", fmt.Errorf("%w: %s: status %d", ErrResolutionFailed, handle, resp.StatusCode)
	}

	var env userEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedResponse, handle, err)
	}
	if env.Data == nil || strings.TrimSpace(env.Data.ID) == "" {
		return "", fmt.Errorf("%w: %s: missing data.id", ErrMalformedResponse, handle)
	}

	cache.SetIdentity(handle, env.Data.ID)
	return env.Data.ID, nil
}

// FetchRecent returns up to MaxResults posts for userID strictly newer than
// sinceID (0 means no cursor: newest page). Order is whatever the server
// sent; the caller owns final ordering.
//
// A persistent rate limit returns (nil, nil): to the caller, rate-limited
// and caught-up both mean "nothing to do this run". Only the log can tell
// them apart, which is deliberate.
func (c *Client) FetchRecent(ctx context.Context, userID string, sinceID uint64) ([]Post, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatUint(sinceID, 10))
	}
	u := c.cfg.BaseURL + "/users/" + url.PathEscape(userID) + "/posts?" + q.Encode()

	resp, err := c.getWithBackoff(ctx, u)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			c.log.Warn("still rate limited after retry; skipping fetch this run",
				logx.String("user_id", userID))
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: user %s: status %d", ErrFetchFailed, userID, resp.StatusCode)
	}

	var env postsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: user %s: %v", ErrMalformedResponse, userID, err)
	}

	posts := make([]Post, 0, len(env.Data))
	for _, d := range env.Data {
		id, err := strconv.ParseUint(d.ID, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("%w: user %s: bad post id %q", ErrMalformedResponse, userID, d.ID)
		}
		posts = append(posts, Post{ID: id, Text: d.Text})
	}
	return posts, nil
}

// getWithBackoff performs an authenticated GET, applying the single-retry
// backoff policy on a 429. A 429 on the retry yields ErrRateLimited.
func (c *Client) getWithBackoff(ctx context.Context, u string) (*http.Response, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}
	drain(resp.Body)
	resp.Body.Close()

	c.log.Debug("rate limited; waiting for single retry",
		logx.Duration("wait", c.cfg.Backoff.Wait))
	if err := c.cfg.Backoff.Sleep(ctx); err != nil {
		return nil, err
	}

	resp, err = c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		drain(resp.Body)
		resp.Body.Close()
		return nil, ErrRateLimited
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return c.http.Do(req)
}

func drain(r io.Reader) { _, _ = io.Copy(io.Discard, r) }
