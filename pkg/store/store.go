// Package store holds the active event-log snapshot shared by requests.
//
// A snapshot is immutable once published; Replace swaps the whole
// snapshot, so readers holding the previous one are unaffected.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrNoSnapshot is returned by Current before anything was published.
var ErrNoSnapshot = pmerrors.New(pmerrors.CodeNoActiveLog, "no active event log")

// Snapshot is one validated event log and where it came from.
type Snapshot struct {
	ID       string          `msgpack:"id"`
	Source   string          `msgpack:"source"`
	LoadedAt time.Time       `msgpack:"loaded_at"`
	Log      *model.EventLog `msgpack:"log"`
}

// NewSnapshot wraps log with a fresh ID.
func NewSnapshot(source string, log *model.EventLog) *Snapshot {
	return &Snapshot{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Log:      log,
	}
}

// Info is snapshot metadata without the events.
type Info struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Rows     int       `json:"rows"`
}

// Info returns the snapshot metadata.
func (s *Snapshot) Info() Info {
	return Info{
		ID:       s.ID,
		Source:   s.Source,
		LoadedAt: s.LoadedAt,
		Rows:     s.Log.Len(),
	}
}

// Store publishes and serves the current snapshot.
type Store interface {
	// Current returns the active snapshot or ErrNoSnapshot.
	Current(ctx context.Context) (*Snapshot, error)

	// Replace makes s the active snapshot.
	Replace(ctx context.Context, s *Snapshot) error

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Redis   RedisConfig
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, pmerrors.New(pmerrors.CodeStoreFailed, fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
}
