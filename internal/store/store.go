package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"jokebot/pkg/logx"
)

// SeenStore persists the delivered-item ids of one content category.
//
// Load never fails: a missing or malformed document is an empty set. The set
// grows monotonically; nothing in the bot removes ids.
type SeenStore interface {
	Load(ctx context.Context) map[string]struct{}
	Save(ctx context.Context, ids map[string]struct{}) error
}

// SubscriberStore persists the set of chats subscribed to the broadcast.
// Same load/save contract as SeenStore.
type SubscriberStore interface {
	Load(ctx context.Context) map[int64]struct{}
	Save(ctx context.Context, chats map[int64]struct{}) error
}

// Stores bundles the per-purpose stores opened from one config.
type Stores interface {
	Subscribers() SubscriberStore

	// Seen returns the seen-set store for a category. Categories are fixed at
	// open time; asking for an unknown one returns (nil, false).
	Seen(category string) (SeenStore, bool)

	Close() error
}

// Config configures persistence.
//
// Driver values:
//   - "file" (or empty): JSON documents on disk
//   - "sqlite": single database file (build with -tags sqlite)
type Config struct {
	Driver          string
	SubscribersPath string
	SeenPaths       map[string]string // category -> seen-set document path

	Path        string        // sqlite database file
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Stores, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
