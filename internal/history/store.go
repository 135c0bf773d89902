package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const busyTimeoutMS = 5000

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		work_dir   TEXT NOT NULL DEFAULT '',
		mode       TEXT NOT NULL DEFAULT '',
		model      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		role       TEXT    NOT NULL,
		content    TEXT    NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
}

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"` // "user", "assistant" or "tool"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents a persisted conversation session
type Session struct {
	ID        string    `json:"id"`
	WorkDir   string    `json:"work_dir"`
	Mode      string    `json:"mode"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary returns a brief summary of the session for listing
func (s *Session) Summary() string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	lastActivity := s.UpdatedAt.Format("Jan 2 15:04")
	return fmt.Sprintf("%s: %d messages, %s mode (last: %s)", id, len(s.Messages), s.Mode, lastActivity)
}

// Store persists session history in a SQLite database
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrap(err, "creating history directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS),
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "applying %q", pragma)
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "migrating history schema")
		}
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the session row and replaces its messages.
func (s *Store) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if err := upsertSession(tx, session); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, session.ID); err != nil {
		return errors.Wrap(err, "clearing messages")
	}
	for i, m := range session.Messages {
		if err := insertMessage(tx, session.ID, i, m); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "committing session")
}

// Append adds one message to an existing session, creating the session row
// when it does not exist yet.
func (s *Store) Append(session *Session, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = msg.Timestamp
	}
	session.UpdatedAt = msg.Timestamp

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if err := upsertSession(tx, session); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE session_id = ?`, session.ID).Scan(&next); err != nil {
		return errors.Wrap(err, "reading message sequence")
	}
	if err := insertMessage(tx, session.ID, next, msg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing message")
	}
	session.Messages = append(session.Messages, msg)
	return nil
}

// Load retrieves a session by ID
func (s *Store) Load(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		session          Session
		created, updated int64
	)
	err := s.db.QueryRow(
		`SELECT id, work_dir, mode, model, created_at, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&session.ID, &session.WorkDir, &session.Mode, &session.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading session")
	}
	session.CreatedAt = time.UnixMilli(created)
	session.UpdatedAt = time.UnixMilli(updated)

	rows, err := s.db.Query(
		`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "reading messages")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m  Message
			ts int64
		)
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, errors.Wrap(err, "scanning message")
		}
		m.Timestamp = time.UnixMilli(ts)
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating messages")
	}

	return &session, nil
}

// List returns all sessions sorted by most recently updated. Messages are
// not populated beyond their count.
func (s *Store) List() ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT s.id, s.work_dir, s.mode, s.model, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var (
			session          Session
			created, updated int64
			count            int
		)
		if err := rows.Scan(&session.ID, &session.WorkDir, &session.Mode, &session.Model, &created, &updated, &count); err != nil {
			return nil, errors.Wrap(err, "scanning session")
		}
		session.CreatedAt = time.UnixMilli(created)
		session.UpdatedAt = time.UnixMilli(updated)
		session.Messages = make([]Message, count)
		sessions = append(sessions, &session)
	}
	return sessions, errors.Wrap(rows.Err(), "iterating sessions")
}

// Delete removes a session and its messages from the store
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("session %s not found", sessionID)
	}
	return nil
}

func upsertSession(tx *sql.Tx, session *Session) error {
	_, err := tx.Exec(`
		INSERT INTO sessions (id, work_dir, mode, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			work_dir = excluded.work_dir,
			mode = excluded.mode,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		session.ID, session.WorkDir, session.Mode, session.Model,
		session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
	)
	return errors.Wrap(err, "saving session")
}

func insertMessage(tx *sql.Tx, sessionID string, seq int, m Message) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := tx.Exec(
		`INSERT INTO messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, m.Role, m.Content, ts.UnixMilli(),
	)
	return errors.Wrap(err, "saving message")
}
