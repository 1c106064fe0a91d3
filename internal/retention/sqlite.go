package retention

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vigil-labs/vigil-core/internal/config"
	_ "modernc.org/sqlite"
)

// sqliteStore persists the capped decision log across restarts. The cap is
// enforced in the same transaction as each insert.
type sqliteStore struct {
	db       *sql.DB
	capacity int
	log      *slog.Logger
	clock    func() time.Time
	mu       sync.Mutex
}

// Open builds a Store according to config: a memory ring by default, a
// SQLite file when configured.
func Open(ctx context.Context, cfg config.RetentionConfig, log *slog.Logger) (Store, error) {
	if cfg.Mode != "sqlite" {
		return NewMemoryStore(cfg.Capacity), nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &sqliteStore{db: db, capacity: cfg.Capacity, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS decisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    clip_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    tier TEXT NOT NULL,
    alert_fired INTEGER NOT NULL,
    incomplete INTEGER NOT NULL,
    transcript TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *sqliteStore) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions(clip_id, session_id, tier, alert_fired, incomplete, transcript, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		entry.ClipID, entry.SessionID, entry.Tier, boolToInt(entry.AlertFired),
		boolToInt(entry.Incomplete), entry.Transcript, entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	// Evict everything beyond the cap, oldest first, inside the same tx so
	// no reader ever observes more than capacity rows.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM decisions WHERE id NOT IN (
			SELECT id FROM decisions ORDER BY id DESC LIMIT ?
		)`, s.capacity)
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (s *sqliteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT clip_id, session_id, tier, alert_fired, incomplete, transcript, created_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, s.capacity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var alert, incomplete int
		var created string
		if err := rows.Scan(&e.ClipID, &e.SessionID, &e.Tier, &alert, &incomplete, &e.Transcript, &created); err != nil {
			return nil, err
		}
		e.AlertFired = alert != 0
		e.Incomplete = incomplete != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	if len(entries) > s.capacity {
		return nil, ErrCapViolation
	}
	return entries, rows.Err()
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions`)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
