package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "hookrelay/pkg/logx"
)

func newDiscord(t *testing.T, srv *httptest.Server) Publisher {
	t.Helper()
	p, err := Open(Config{
		Driver:     "discord",
		WebhookURL: srv.URL,
		OriginHost: "x.com",
		BotName:    "Captain Hook",
		MaxBody:    3900,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestDiscordPayloadShape(t *testing.T) {
	t.Parallel()
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newDiscord(t, srv).Publish(context.Background(), "alice", 105, "hello"); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	var got struct {
		Username        string `json:"username"`
		AllowedMentions struct {
			Parse []string `json:"parse"`
		} `json:"allowed_mentions"`
		Embeds []struct {
			Author struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"author"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"embeds"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.Username != "Captain Hook" {
		t.Fatalf("username = %q", got.Username)
	}
	if got.AllowedMentions.Parse == nil || len(got.AllowedMentions.Parse) != 0 {
		t.Fatalf("allowed_mentions.parse = %v, want []", got.AllowedMentions.Parse)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Author.Name != "@alice" || e.Author.URL != "https://x.com/alice" {
		t.Fatalf("author = %+v", e.Author)
	}
	if e.Description != "hello" {
		t.Fatalf("description = %q", e.Description)
	}
	if e.URL != "https://x.com/alice/status/105" {
		t.Fatalf("url = %q", e.URL)
	}
	// Raw bytes must carry "parse":[] — null would re-enable mentions.
	if !strings.Contains(string(raw), `"parse":[]`) {
		t.Fatalf("payload missing empty parse array: %s", raw)
	}
}

func TestDiscordSuccessCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		ok     bool
	}{
		{name: "no content", status: 204, ok: true},
		{name: "ok", status: 200, ok: true},
		{name: "rate limited", status: 429, ok: false},
		{name: "bad request", status: 400, ok: false},
		{name: "server error", status: 500, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newDiscord(t, srv).Publish(context.Background(), "alice", 1, "x")
			if tt.ok && err != nil {
				t.Fatalf("Publish error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrDeliveryFailed) {
				t.Fatalf("error = %v, want ErrDeliveryFailed", err)
			}
		})
	}
}

func TestDiscordTruncatesBody(t *testing.T) {
	t.Parallel()
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := Open(Config{Driver: "discord", WebhookURL: srv.URL, MaxBody: 10}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	long := strings.Repeat("a", 50)
	if err := p.Publish(context.Background(), "alice", 1, long); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	var got struct {
		Embeds []struct {
			Description string `json:"description"`
		} `json:"embeds"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Embeds[0].Description != strings.Repeat("a", 10) {
		t.Fatalf("description = %q, want exactly 10 bytes", got.Embeds[0].Description)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter", in: "abc", n: 10, want: "abc"},
		{name: "exact", in: "abc", n: 3, want: "abc"},
		{name: "cut", in: "abcdef", n: 3, want: "abc"},
		{name: "zero keeps all", in: "abc", n: 0, want: "abc"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "carrier-pigeon"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
