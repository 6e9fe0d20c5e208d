package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/clap4me/internal/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Store handles all database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS engagements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL,
		tag TEXT,
		clapped BOOLEAN NOT NULL DEFAULT 0,
		claps INTEGER NOT NULL DEFAULT 0,
		followed BOOLEAN NOT NULL DEFAULT 0,
		commented BOOLEAN NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		error TEXT,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_engagements_session ON engagements(session_id);
	CREATE INDEX IF NOT EXISTS idx_engagements_at ON engagements(at);
	CREATE INDEX IF NOT EXISTS idx_engagements_url ON engagements(url);
	`

	_, err := s.db.Exec(schema)
	return err
}

// StartSession records the start of a bot run and returns its id.
func (s *Store) StartSession() (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, id, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// FinishSession stamps the end of a run and returns its statistics.
func (s *Store) FinishSession(id string) (types.SessionStats, error) {
	res, err := s.db.Exec(`UPDATE sessions SET finished_at = ? WHERE id = ?`, s.now().UTC(), id)
	if err != nil {
		return types.SessionStats{}, fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.SessionStats{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s.SessionStats(id)
}

// RecordEngagement stores what happened on one article.
func (s *Store) RecordEngagement(e types.Engagement) error {
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO engagements (session_id, url, tag, clapped, claps, followed, commented, outcome, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.URL, e.Tag, e.Clapped, e.Claps, e.Followed, e.Commented,
		string(e.Outcome), e.Error, e.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to record engagement for %s: %w", e.URL, err)
	}
	return nil
}

// RecentEngagements returns the newest engagements first.
func (s *Store) RecentEngagements(limit int) ([]types.Engagement, error) {
	rows, err := s.db.Query(`
		SELECT session_id, url, tag, clapped, claps, followed, commented, outcome, error, at
		FROM engagements
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEngagements(rows)
}

// SessionEngagements returns a session's engagements in the order they happened.
func (s *Store) SessionEngagements(id string) ([]types.Engagement, error) {
	rows, err := s.db.Query(`
		SELECT session_id, url, tag, clapped, claps, followed, commented, outcome, error, at
		FROM engagements
		WHERE session_id = ?
		ORDER BY at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEngagements(rows)
}

// SessionStats aggregates one session's engagements.
func (s *Store) SessionStats(id string) (types.SessionStats, error) {
	st := types.SessionStats{ID: id}
	var finished sql.NullTime
	err := s.db.QueryRow(`SELECT started_at, finished_at FROM sessions WHERE id = ?`, id).
		Scan(&st.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return st, err
	}
	if finished.Valid {
		st.FinishedAt = finished.Time
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(clapped), 0),
			COALESCE(SUM(followed), 0),
			COALESCE(SUM(commented), 0),
			COALESCE(SUM(outcome = ?), 0)
		FROM engagements
		WHERE session_id = ?
	`, string(types.OutcomeFailed), id).Scan(&st.Processed, &st.Clapped, &st.Followed, &st.Commented, &st.Failed)
	if err != nil {
		return st, err
	}
	return st, nil
}

// LatestSession returns the id of the most recently started session.
func (s *Store) LatestSession() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM sessions ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no sessions recorded: %w", ErrNotFound)
	}
	return id, err
}

// Engaged reports whether url has ever been processed successfully.
func (s *Store) Engaged(url string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM engagements WHERE url = ? AND outcome = ?)`,
		url, string(types.OutcomeDone)).Scan(&exists)
	return exists, err
}

func scanEngagements(rows *sql.Rows) ([]types.Engagement, error) {
	var out []types.Engagement
	for rows.Next() {
		var e types.Engagement
		var tag, errText sql.NullString
		var outcome string

		err := rows.Scan(&e.SessionID, &e.URL, &tag, &e.Clapped, &e.Claps,
			&e.Followed, &e.Commented, &outcome, &errText, &e.At)
		if err != nil {
			return nil, err
		}
		e.Tag, e.Error, e.Outcome = tag.String, errText.String, types.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
