package config

// Config is the top-level hookrelay configuration.
//
// Secrets never live in this file: the upstream bearer token, the webhook
// URL, the telegram bot token, and the remote state token are read from the
// process environment at bootstrap (see internal/app).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// AccountsFile is the newline-delimited list of tracked handles.
	AccountsFile string `json:"accounts_file"`

	Source    SourceConfig    `json:"source"`
	Publisher PublisherConfig `json:"publisher"`
	State     StateConfig     `json:"state"`
	Relay     RelayConfig     `json:"relay"`
	Daemon    *DaemonConfig   `json:"daemon,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

// SourceConfig controls the upstream posts API client.
type SourceConfig struct {
	// BaseURL defaults to "https://api.x.com/2".
	BaseURL string `json:"base_url,omitempty"`
	// MaxResults is the per-fetch page size (default 5).
	MaxResults int `json:"max_results,omitempty"`
	// Timeout is the per-request HTTP timeout (default "20s").
	Timeout string `json:"timeout,omitempty"`
	// BackoffWait is the single rate-limit retry delay (default "12s").
	BackoffWait string `json:"backoff_wait,omitempty"`
}

// PublisherConfig controls the outbound chat destination.
//
// Driver values:
//   - "discord": webhook POST, one embed per post (default)
//   - "telegram": bot message to a fixed chat
type PublisherConfig struct {
	Driver string `json:"driver,omitempty"`
	// OriginHost builds the canonical post link: https://{host}/{handle}/status/{id}.
	// Default "x.com".
	OriginHost string `json:"origin_host,omitempty"`
	// BotName is the display-name override on the webhook (default "Captain Hook").
	BotName string `json:"bot_name,omitempty"`
	// MaxBody caps the relayed post text in bytes (default 3900, a safety
	// margin under Discord's 4096 embed description limit).
	MaxBody int    `json:"max_body,omitempty"`
	Timeout string `json:"timeout,omitempty"`

	Telegram *PublisherTelegram `json:"telegram,omitempty"`
}

type PublisherTelegram struct {
	ChatID int64 `json:"chat_id"`
}

// StateConfig controls cursor persistence.
//
// Driver values:
//   - "file": whole-document JSON on local disk
//   - "remote": versioned HTTP object (ETag / If-Match)
//   - "sqlite": SQLite database file (optional build tag)
type StateConfig struct {
	Driver string `json:"driver"`
	// Path is the local file / database path (file, sqlite).
	Path string `json:"path,omitempty"`
	// URL is the remote object URL (remote).
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
	// BusyTimeout applies to the sqlite driver only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RelayConfig tunes the polling cycle.
type RelayConfig struct {
	// MaxPostsPerAccount caps emissions per account per run (default 2).
	// Older unseen posts go out first; the rest wait for the next run.
	MaxPostsPerAccount int `json:"max_posts_per_account,omitempty"`
	// PostDelay paces consecutive deliveries (default "1500ms").
	PostDelay string `json:"post_delay,omitempty"`
	// AccountDelay paces consecutive accounts (default "3s").
	AccountDelay string `json:"account_delay,omitempty"`
}

// DaemonConfig controls daemon mode. Omitting the section leaves hookrelay
// in one-shot mode unless -daemon is passed.
type DaemonConfig struct {
	// Schedule is a cron spec ("*/5 * * * *") or an @every interval
	// ("@every 5m"). Default "@every 5m".
	Schedule string `json:"schedule,omitempty"`
	// Timezone for cron evaluation (default local).
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
