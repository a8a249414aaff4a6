package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed journal.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS boundaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		boundary_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		changed TEXT NOT NULL,
		failed INTEGER NOT NULL,
		error TEXT,
		before_params TEXT NOT NULL,
		before_toas TEXT NOT NULL,
		before_residuals TEXT NOT NULL,
		after_params TEXT NOT NULL,
		after_toas TEXT NOT NULL,
		after_residuals TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_id ON boundaries(session_id);
	CREATE INDEX IF NOT EXISTS idx_started_at ON boundaries(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new entry to the journal.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boundaries (
			session_id, boundary_id, origin, started_at, duration_ns, changed, failed, error,
			before_params, before_toas, before_residuals,
			after_params, after_toas, after_residuals
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.BoundaryID, e.Origin, e.StartedAt.UnixNano(), int64(e.Duration),
		strings.Join(e.Changed, ","), boolToInt(e.Failed), e.Err,
		e.BeforeParams, e.BeforeTOAs, e.BeforeResiduals,
		e.AfterParams, e.AfterTOAs, e.AfterResiduals,
	)
	if err != nil {
		return fmt.Errorf("insert boundary: %w", err)
	}
	return nil
}

// GetBySession retrieves all entries for one session, oldest first.
func (s *SQLiteStore) GetBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" FROM boundaries WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query boundaries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetRecent retrieves the most recent entries, newest first.
func (s *SQLiteStore) GetRecent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" FROM boundaries ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query boundaries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const selectColumns = `SELECT id, session_id, boundary_id, origin, started_at, duration_ns, changed, failed, error,
	before_params, before_toas, before_residuals, after_params, after_toas, after_residuals`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedNs, durationNs int64
		var changed string
		var failed int
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.BoundaryID, &e.Origin, &startedNs, &durationNs, &changed, &failed, &e.Err,
			&e.BeforeParams, &e.BeforeTOAs, &e.BeforeResiduals,
			&e.AfterParams, &e.AfterTOAs, &e.AfterResiduals,
		); err != nil {
			return nil, fmt.Errorf("scan boundary: %w", err)
		}
		e.StartedAt = time.Unix(0, startedNs)
		e.Duration = time.Duration(durationNs)
		if changed != "" {
			e.Changed = strings.Split(changed, ",")
		}
		e.Failed = failed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
