// Package app wires configuration, logging, persistence, the upstream
// client, and the publisher into the two run modes: one-shot and daemon.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"hookrelay/internal/accounts"
	"hookrelay/internal/config"
	"hookrelay/internal/publish"
	"hookrelay/internal/relay"
	"hookrelay/internal/source"
	"hookrelay/internal/state"
	logx "hookrelay/pkg/logx"
)

// Env carries the process-environment secrets. They never appear in the
// config file and are never logged.
type Env struct {
	SourceToken   string // X_BEARER_TOKEN
	WebhookURL    string // DISCORD_WEBHOOK_URL
	TelegramToken string // TELEGRAM_BOT_TOKEN
	StateToken    string // HOOKRELAY_STATE_TOKEN (remote driver)
}

// EnvFromProcess reads the secret environment variables, trimming stray
// whitespace (tokens pasted into CI secrets often carry a newline).
func EnvFromProcess() Env {
	get := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return Env{
		SourceToken:   get("X_BEARER_TOKEN"),
		WebhookURL:    get("DISCORD_WEBHOOK_URL"),
		TelegramToken: get("TELEGRAM_BOT_TOKEN"),
		StateToken:    get("HOOKRELAY_STATE_TOKEN"),
	}
}

type App struct {
	cfgMgr *config.ConfigManager
	logSvc *logx.Service
	log    logx.Logger

	store state.Store
	src   *source.Client
	pub   publish.Publisher
}

// New loads and validates the config, then constructs every component.
// Construction failures are fatal: a relay with no store or no destination
// has nothing useful to do.
func New(cfgPath string, env Env) (*App, error) {
	mgr := config.NewConfigManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log)

	srcTimeout, err := config.ParseDurationField("source.timeout", cfg.Source.Timeout)
	if err != nil {
		return nil, err
	}
	backoffWait, err := config.ParseDurationField("source.backoff_wait", cfg.Source.BackoffWait)
	if err != nil {
		return nil, err
	}
	pubTimeout, err := config.ParseDurationField("publisher.timeout", cfg.Publisher.Timeout)
	if err != nil {
		return nil, err
	}
	stateTimeout, err := config.ParseDurationField("state.timeout", cfg.State.Timeout)
	if err != nil {
		return nil, err
	}
	busyTimeout, err := config.ParseDurationField("state.busy_timeout", cfg.State.BusyTimeout)
	if err != nil {
		return nil, err
	}

	store, err := state.Open(state.Config{
		Driver:      cfg.State.Driver,
		Path:        cfg.State.Path,
		URL:         cfg.State.URL,
		Token:       env.StateToken,
		Timeout:     stateTimeout,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("state: %w", err)
	}

	var chatID int64
	if cfg.Publisher.Telegram != nil {
		chatID = cfg.Publisher.Telegram.ChatID
	}
	pub, err := publish.Open(publish.Config{
		Driver:         cfg.Publisher.Driver,
		OriginHost:     cfg.Publisher.OriginHost,
		BotName:        cfg.Publisher.BotName,
		MaxBody:        cfg.Publisher.MaxBody,
		Timeout:        pubTimeout,
		WebhookURL:     env.WebhookURL,
		TelegramToken:  env.TelegramToken,
		TelegramChatID: chatID,
	}, log)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("publisher: %w", err)
	}

	src := source.New(source.Config{
		BaseURL:    cfg.Source.BaseURL,
		Token:      env.SourceToken,
		MaxResults: cfg.Source.MaxResults,
		Timeout:    srcTimeout,
		Backoff:    source.Backoff{Wait: backoffWait},
	}, log)

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		store:  store,
		src:    src,
		pub:    pub,
	}, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// RunOnce executes one polling cycle with the current config. Only the
// account-list load is fatal; everything else degrades per account.
func (a *App) RunOnce(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	handles, err := accounts.Load(cfg.AccountsFile)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		a.log.Warn("accounts list is empty; nothing to relay",
			logx.String("path", cfg.AccountsFile))
		return nil
	}

	// Relay tunables are re-read each cycle so daemon reloads take effect
	// without a restart. Validate() already proved the durations parse.
	postDelay, _ := config.ParseDurationOrDefault("relay.post_delay", cfg.Relay.PostDelay, 0)
	acctDelay, _ := config.ParseDurationOrDefault("relay.account_delay", cfg.Relay.AccountDelay, 0)

	runner := relay.New(a.store, a.src, a.pub, relay.Config{
		MaxPostsPerAccount: cfg.Relay.MaxPostsPerAccount,
		PostDelay:          postDelay,
		AccountDelay:       acctDelay,
	}, a.log)

	rep := runner.Run(ctx, handles)
	a.log.Info("cycle complete",
		logx.Int("accounts", rep.Accounts),
		logx.Int("published", rep.Published),
		logx.Int("errors", rep.Errors),
		logx.Bool("committed", rep.Committed))
	return nil
}

func (a *App) Close() error {
	var first error
	if err := a.pub.Close(); err != nil {
		first = err
	}
	if err := a.store.Close(); err != nil && first == nil {
		first = err
	}
	if err := a.logSvc.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
