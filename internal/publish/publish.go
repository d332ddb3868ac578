// Package publish turns one fetched post into one outbound chat message.
//
// Drivers:
//   - "discord": webhook POST, one embed per post (default)
//   - "telegram": bot message to a fixed chat
//
// Delivery either fully succeeds or fails with ErrDeliveryFailed; there is
// no retry here. The relay cycle decides what a failed post means for the
// cursor.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "hookrelay/pkg/logx"
)

// ErrDeliveryFailed is a post-scoped hard failure: the destination did not
// acknowledge with one of its success codes.
var ErrDeliveryFailed = errors.New("publish: delivery failed")

// Publisher delivers one post to the destination.
type Publisher interface {
	Publish(ctx context.Context, handle string, postID uint64, text string) error
	Close() error
}

// Config configures the destination. Secrets (webhook URL, bot token) come
// from the environment, not the config file.
type Config struct {
	Driver     string
	OriginHost string
	BotName    string
	MaxBody    int
	Timeout    time.Duration

	WebhookURL string // discord

	TelegramToken  string // telegram
	TelegramChatID int64
}

// Open initializes the configured publisher.
func Open(cfg Config, log logx.Logger) (Publisher, error) {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 3900
	}
	if strings.TrimSpace(cfg.OriginHost) == "" {
		cfg.OriginHost = "x.com"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "discord":
		return openDiscord(cfg, log)
	case "telegram":
		return openTelegram(cfg, log)
	default:
		return nil, errors.New("unknown publisher driver: " + cfg.Driver)
	}
}

// Truncate caps s at n bytes, dropping trailing content. No ellipsis, no
// word-boundary care: the destination link carries the full post anyway.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func postURL(host, handle string, postID uint64) string {
	return fmt.Sprintf("https://%s/%s/status/%d", host, handle, postID)
}

func profileURL(host, handle string) string {
	return fmt.Sprintf("https://%s/%s", host, handle)
}
