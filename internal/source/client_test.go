package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	logx "hookrelay/pkg/logx"
)

type fakeCache struct {
	ids map[string]string
	set int
}

func newFakeCache() *fakeCache { return &fakeCache{ids: map[string]string{}} }

func (c *fakeCache) Identity(handle string) (string, bool) {
	id, ok := c.ids[handle]
	return id, ok
}

func (c *fakeCache) SetIdentity(handle, id string) {
	c.ids[handle] = id
	c.set++
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New(Config{
		BaseURL:    srv.URL,
		Token:      "tok",
		MaxResults: 5,
		Backoff:    Backoff{Wait: 0}, // no real sleeping in tests
	}, logx.Nop())
}

func TestResolveIDCacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newFakeCache()
	cache.ids["alice"] = "1001"

	id, err := newClient(t, srv).ResolveID(context.Background(), "alice", cache)
	if err != nil {
		t.Fatalf("ResolveID error: %v", err)
	}
	if id != "1001" {
		t.Fatalf("id = %q, want 1001", id)
	}
	if calls.Load() != 0 {
		t.Fatalf("cache hit still made %d requests", calls.Load())
	}
}

func TestResolveIDMissCachesResult(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/by/alice" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"data":{"id":"1001"}}`))
	}))
	defer srv.Close()

	cache := newFakeCache()
	id, err := newClient(t, srv).ResolveID(context.Background(), "alice", cache)
	if err != nil {
		t.Fatalf("ResolveID error: %v", err)
	}
	if id != "1001" {
		t.Fatalf("id = %q", id)
	}
	if got, ok := cache.Identity("alice"); !ok || got != "1001" {
		t.Fatalf("result not cached: %q (ok=%v)", got, ok)
	}
}

func TestResolveIDFailuresAreTyped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "not found", status: 404, body: `{}`, want: ErrResolutionFailed},
		{name: "server error", status: 500, body: ``, want: ErrResolutionFailed},
		{name: "missing id", status: 200, body: `{"data":{}}`, want: ErrMalformedResponse},
		{name: "no data", status: 200, body: `{}`, want: ErrMalformedResponse},
		{name: "not json", status: 200, body: `<html>`, want: ErrMalformedResponse},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv).ResolveID(context.Background(), "alice", newFakeCache())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchRecentQueryAssembly(t *testing.T) {
	t.Parallel()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/1001/posts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[{"id":"105","text":"hi"}]}`))
	}))
	defer srv.Close()

	posts, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 99)
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}
	if gotQuery != "max_results=5&since_id=99" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(posts) != 1 || posts[0].ID != 105 || posts[0].Text != "hi" {
		t.Fatalf("posts = %+v", posts)
	}
}

func TestFetchRecentNoCursorOmitsSinceID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("since_id") {
			t.Errorf("since_id sent with zero cursor: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	posts, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 0)
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("posts = %+v, want none", posts)
	}
}

func TestFetchRecentBackoffRetryOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"7","text":"retry ok"}]}`))
	}))
	defer srv.Close()

	posts, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 0)
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 7 {
		t.Fatalf("posts = %+v", posts)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", calls.Load())
	}
}

func TestFetchRecentPersistentRateLimitIsSilent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	posts, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 0)
	if err != nil {
		t.Fatalf("persistent rate limit must not error, got %v", err)
	}
	if posts != nil {
		t.Fatalf("posts = %+v, want nil", posts)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want exactly 2 (no further retries)", calls.Load())
	}
}

func TestFetchRecentMalformedPostID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"not-a-number","text":"x"}]}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 0)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchRecentFetchFailed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).FetchRecent(context.Background(), "1001", 0)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
}
