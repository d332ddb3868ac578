package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "hookrelay/pkg/logx"
)

// discordPublisher posts one embed per relayed post to a webhook.
//
// Payload shape mirrors what the channel has always received: display-name
// override, mentions fully suppressed, author block linking the profile,
// description holding the (truncated) text, and the canonical post URL.
type discordPublisher struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

type webhookPayload struct {
	Username        string          `json:"username"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
	Embeds          []embed         `json:"embeds"`
}

type allowedMentions struct {
	// Parse must serialize as an empty array, not null, to suppress all
	// mention classes.
	Parse []string `json:"parse"`
}

type embed struct {
	Author      embedAuthor `json:"author"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
}

type embedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func openDiscord(cfg Config, log logx.Logger) (Publisher, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("discord webhook URL is empty (set DISCORD_WEBHOOK_URL)")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &discordPublisher{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

func (p *discordPublisher) Publish(ctx context.Context, handle string, postID uint64, text string) error {
	payload := webhookPayload{
		Username:        p.cfg.BotName,
		AllowedMentions: allowedMentions{Parse: []string{}},
		Embeds: []embed{{
			Author: embedAuthor{
				Name: "@" + handle,
				URL:  profileURL(p.cfg.OriginHost, handle),
			},
			Description: Truncate(text, p.cfg.MaxBody),
			URL:         postURL(p.cfg.OriginHost, handle, postID),
		}},
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.WebhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	// Webhooks answer 204 normally, 200 with ?wait=true.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	drainRest(resp.Body)
	return nil
}

func (p *discordPublisher) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

func drainRest(r io.Reader) { _, _ = io.Copy(io.Discard, r) }
