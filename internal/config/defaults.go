package config

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults applied by Normalize when fields are omitted/zero.
const (
	DefaultBaseURL     = "https://api.x.com/2"
	DefaultMaxResults  = 5
	DefaultOriginHost  = "x.com"
	DefaultBotName     = "Captain Hook"
	DefaultMaxBody     = 3900
	DefaultMaxPosts    = 2
	DefaultSchedule    = "@every 5m"
	DefaultSourceTmo   = "20s"
	DefaultBackoffWait = "12s"
	DefaultPubTmo      = "20s"
	DefaultStateTmo    = "15s"
	DefaultPostDelay   = "1500ms"
	DefaultAcctDelay   = "3s"
)

// Normalize fills in defaults in place. It is idempotent.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.MaxResults <= 0 {
		c.Source.MaxResults = DefaultMaxResults
	}
	if strings.TrimSpace(c.Source.Timeout) == "" {
		c.Source.Timeout = DefaultSourceTmo
	}
	if strings.TrimSpace(c.Source.BackoffWait) == "" {
		c.Source.BackoffWait = DefaultBackoffWait
	}

	if strings.TrimSpace(c.Publisher.Driver) == "" {
		c.Publisher.Driver = "discord"
	}
	if strings.TrimSpace(c.Publisher.OriginHost) == "" {
		c.Publisher.OriginHost = DefaultOriginHost
	}
	if strings.TrimSpace(c.Publisher.BotName) == "" {
		c.Publisher.BotName = DefaultBotName
	}
	if c.Publisher.MaxBody <= 0 {
		c.Publisher.MaxBody = DefaultMaxBody
	}
	if strings.TrimSpace(c.Publisher.Timeout) == "" {
		c.Publisher.Timeout = DefaultPubTmo
	}

	if strings.TrimSpace(c.State.Driver) == "" {
		c.State.Driver = "file"
	}
	if strings.TrimSpace(c.State.Timeout) == "" {
		c.State.Timeout = DefaultStateTmo
	}

	if c.Relay.MaxPostsPerAccount <= 0 {
		c.Relay.MaxPostsPerAccount = DefaultMaxPosts
	}
	if strings.TrimSpace(c.Relay.PostDelay) == "" {
		c.Relay.PostDelay = DefaultPostDelay
	}
	if strings.TrimSpace(c.Relay.AccountDelay) == "" {
		c.Relay.AccountDelay = DefaultAcctDelay
	}

	if c.Daemon != nil && strings.TrimSpace(c.Daemon.Schedule) == "" {
		c.Daemon.Schedule = DefaultSchedule
	}
}

// Validate checks field combinations that Normalize cannot repair.
// Errors name the offending field path.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccountsFile) == "" {
		return errors.New("accounts_file: required")
	}

	switch strings.ToLower(strings.TrimSpace(c.State.Driver)) {
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.State.Path) == "" {
			return fmt.Errorf("state.path: required for driver %q", c.State.Driver)
		}
	case "remote":
		if strings.TrimSpace(c.State.URL) == "" {
			return errors.New("state.url: required for driver \"remote\"")
		}
	default:
		return fmt.Errorf("state.driver: unknown driver %q", c.State.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(c.Publisher.Driver)) {
	case "discord":
	case "telegram":
		if c.Publisher.Telegram == nil || c.Publisher.Telegram.ChatID == 0 {
			return errors.New("publisher.telegram.chat_id: required for driver \"telegram\"")
		}
	default:
		return fmt.Errorf("publisher.driver: unknown driver %q", c.Publisher.Driver)
	}

	// Durations must at least parse.
	for _, f := range []struct{ path, raw string }{
		{"source.timeout", c.Source.Timeout},
		{"source.backoff_wait", c.Source.BackoffWait},
		{"publisher.timeout", c.Publisher.Timeout},
		{"state.timeout", c.State.Timeout},
		{"state.busy_timeout", c.State.BusyTimeout},
		{"relay.post_delay", c.Relay.PostDelay},
		{"relay.account_delay", c.Relay.AccountDelay},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
