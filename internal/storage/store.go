package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Seed      uint64
	Status    string // "menu", "playing", "finished"
	CreatedAt time.Time
}

// EventRow is one applied action in a session's journal.
type EventRow struct {
	SessionCode string    `json:"-"`
	Seq         int64     `json:"seq"`
	Type        string    `json:"type"`
	Payload     string    `json:"payload,omitempty"`
	AppliedAt   time.Time `json:"appliedAt"`
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across callers
	// and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			seed       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'menu',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_events (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			seq          INTEGER NOT NULL,
			type         TEXT NOT NULL,
			payload      TEXT NOT NULL DEFAULT '',
			applied_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_code, seq)
		);
		CREATE TABLE IF NOT EXISTS match_state (
			session_code TEXT PRIMARY KEY REFERENCES sessions(code),
			state_json   TEXT NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// CreateSession inserts a new session. The seed is stored as text because
// SQLite integers are signed.
func (s *Store) CreateSession(code, gameType string, seed uint64) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, seed, status) VALUES (?, ?, ?, 'menu')",
		code, gameType, fmt.Sprint(seed),
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, seed, status, created_at FROM sessions WHERE code = ?", code)
	return scanSession(row)
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, seed, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, seed, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sr)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*SessionRow, error) {
	var sr SessionRow
	var seed string
	if err := row.Scan(&sr.Code, &sr.GameType, &seed, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(seed, &sr.Seed); err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	return &sr, nil
}

// AppendEvent records one applied action and returns its sequence number.
func (s *Store) AppendEvent(sessionCode, eventType, payload string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow("SELECT COALESCE(MAX(seq), 0) + 1 FROM match_events WHERE session_code = ?", sessionCode).Scan(&seq)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(
		"INSERT INTO match_events (session_code, seq, type, payload) VALUES (?, ?, ?, ?)",
		sessionCode, seq, eventType, payload,
	)
	if err != nil {
		return 0, err
	}
	return seq, tx.Commit()
}

// ListEvents returns a session's journal in application order.
func (s *Store) ListEvents(sessionCode string) ([]EventRow, error) {
	rows, err := s.db.Query(
		"SELECT session_code, seq, type, payload, applied_at FROM match_events WHERE session_code = ? ORDER BY seq",
		sessionCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []EventRow
	for rows.Next() {
		var er EventRow
		if err := rows.Scan(&er.SessionCode, &er.Seq, &er.Type, &er.Payload, &er.AppliedAt); err != nil {
			return nil, err
		}
		result = append(result, er)
	}
	return result, rows.Err()
}

// SaveMatchState upserts match state JSON.
func (s *Store) SaveMatchState(sessionCode, stateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO match_state (session_code, state_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_code) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, sessionCode, stateJSON)
	return err
}

// GetMatchState retrieves match state JSON.
func (s *Store) GetMatchState(sessionCode string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM match_state WHERE session_code = ?", sessionCode).Scan(&stateJSON)
	return stateJSON, err
}

// DeleteSession removes a session with its journal and match state.
func (s *Store) DeleteSession(code string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DELETE FROM match_events WHERE session_code = ?",
		"DELETE FROM match_state WHERE session_code = ?",
		"DELETE FROM sessions WHERE code = ?",
	} {
		if _, err := tx.Exec(q, code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
