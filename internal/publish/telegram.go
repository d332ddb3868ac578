package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "hookrelay/pkg/logx"
)

// telegramPublisher sends the relay message to one fixed chat through the
// bot API. Same truncation constant and success-or-hard-failure contract as
// the webhook driver.
type telegramPublisher struct {
	cfg Config
	bot *tele.Bot
	to  *tele.Chat
	log logx.Logger
}

func openTelegram(cfg Config, log logx.Logger) (Publisher, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is empty (set TELEGRAM_BOT_TOKEN)")
	}
	if cfg.TelegramChatID == 0 {
		return nil, errors.New("telegram chat id is not set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.TelegramToken,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &telegramPublisher{
		cfg: cfg,
		bot: b,
		to:  &tele.Chat{ID: cfg.TelegramChatID},
		log: log,
	}, nil
}

func (p *telegramPublisher) Publish(ctx context.Context, handle string, postID uint64, text string) error {
	_ = ctx // telebot manages its own request lifecycle

	msg := fmt.Sprintf("@%s\n%s\n%s",
		handle,
		Truncate(text, p.cfg.MaxBody),
		postURL(p.cfg.OriginHost, handle, postID),
	)

	_, err := p.bot.Send(p.to, msg, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (p *telegramPublisher) Close() error { return nil }
