package state

import (
	"context"
	"errors"
	"strings"

	logx "hookrelay/pkg/logx"
)

// Store is the persistence capability used by the relay cycle.
type Store interface {
	// Load returns the current document and its version. A missing
	// document is not an error: it yields an empty State and an absent
	// ("") version. Transport or auth failures return ErrUnavailable.
	Load(ctx context.Context) (*State, Version, error)

	// Commit durably writes the document. Backends with conditional
	// writes fail with ErrConflict when the stored version no longer
	// matches the one passed in; the caller does not retry.
	Commit(ctx context.Context, s *State, v Version) (Version, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "remote":
		return openRemote(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + cfg.Driver)
	}
}
