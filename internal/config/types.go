package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"jokebot/pkg/logx"
)

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    logx.Config      `json:"logging"`
	Fetch      FetchConfig      `json:"fetch,omitempty"`
	Storage    StorageConfig    `json:"storage,omitempty"`
	Broadcast  BroadcastConfig  `json:"broadcast,omitempty"`
	Categories []CategoryConfig `json:"categories"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// PollTimeout is a Go duration string (e.g. "10s"). Default: "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// FetchConfig controls feed fetching shared across categories.
type FetchConfig struct {
	// Timeout is the per-request HTTP timeout (Go duration string). Default: "20s".
	Timeout string `json:"timeout,omitempty"`

	// UserAgent sent with every feed request.
	UserAgent string `json:"user_agent,omitempty"`
}

// StorageConfig controls persistence of the subscriber set and seen-sets.
//
// Driver values:
//   - "file": JSON documents on disk (default)
//   - "sqlite": single SQLite database file (build with -tags sqlite)
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`

	// SubscribersPath is the subscriber set JSON document (file driver).
	SubscribersPath string `json:"subscribers_path,omitempty"`

	// Path is the SQLite database file (sqlite driver).
	Path string `json:"path,omitempty"`

	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// BroadcastConfig controls outgoing message pacing.
type BroadcastConfig struct {
	// RatePerSec caps sends per second across broadcast passes and command
	// replies. Telegram allows ~30 messages/sec bot-wide. Default: 20.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// CategoryConfig describes one content category (e.g. joke, news): its feed
// sources, the seen-set document, and an optional home link used when an
// entry carries no link of its own.
type CategoryConfig struct {
	Name     string   `json:"name"`
	Feeds    []string `json:"feeds"`
	SeenPath string   `json:"seen_path"`
	HomeLink string   `json:"home_link,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"` // nil means enabled
}

func (c CategoryConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

const (
	defaultPollTimeout  = 10 * time.Second
	defaultFetchTimeout = 20 * time.Second
	defaultRatePerSec   = 20
	defaultUserAgent    = "jokebot/1.0 (+https://github.com/inipew/jokebot)"
)

// Validate checks startup-fatal conditions. Missing credentials or an
// unusable category list must prevent the process from starting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := durationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := durationField("fetch.timeout", c.Fetch.Timeout); err != nil {
		return err
	}
	if _, err := durationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if len(c.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	names := map[string]bool{}
	for i, cat := range c.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("categories[%d]: duplicate category %q", i, name)
		}
		names[name] = true
		if len(cat.Feeds) == 0 {
			return fmt.Errorf("category %q: at least one feed url is required", name)
		}
		if strings.TrimSpace(cat.SeenPath) == "" {
			return fmt.Errorf("category %q: seen_path is required", name)
		}
	}
	return nil
}

// PollTimeout returns the parsed telegram long-poll timeout with default.
func (c *Config) PollTimeout() time.Duration {
	return durationOrDefault(c.Telegram.PollTimeout, defaultPollTimeout)
}

// FetchTimeout returns the parsed per-request feed timeout with default.
func (c *Config) FetchTimeout() time.Duration {
	return durationOrDefault(c.Fetch.Timeout, defaultFetchTimeout)
}

// UserAgent returns the feed request user agent with default.
func (c *Config) UserAgent() string {
	if ua := strings.TrimSpace(c.Fetch.UserAgent); ua != "" {
		return ua
	}
	return defaultUserAgent
}

// RatePerSec returns the send rate cap with default.
func (c *Config) RatePerSec() int {
	if c.Broadcast.RatePerSec > 0 {
		return c.Broadcast.RatePerSec
	}
	return defaultRatePerSec
}

// Category returns the named category config, if present and enabled.
func (c *Config) Category(name string) (CategoryConfig, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name && cat.IsEnabled() {
			return cat, true
		}
	}
	return CategoryConfig{}, false
}

func durationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func durationOrDefault(raw string, def time.Duration) time.Duration {
	d, err := durationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
