package retention

import (
	"context"
	"errors"
	"time"
)

// Entry is one bounded audit record. Raw audio never enters the store;
// the transcript field is already redacted by the pipeline and optional.
type Entry struct {
	ClipID     string
	SessionID  string
	Tier       string
	AlertFired bool
	Incomplete bool
	Transcript string
	CreatedAt  time.Time
}

// Store holds at most the N most recent decisions, evicting the oldest on
// insert. Implementations are safe for concurrent use; the cap invariant
// holds at every instant, not just eventually.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	// List returns entries most recent first.
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
	Close() error
}

// ErrCapViolation signals store corruption; it should never surface in a
// correct build and is treated as bug-level by callers.
var ErrCapViolation = errors.New("retention cap violated")
