// Package audit persists the reference host's forensic trail: every
// topology-change and port-role-change event pkg/stpengine reports
// through its callback table, plus the management API's operator
// credentials, in a local mattn/go-sqlite3-backed database.
//
// None of this lives inside pkg/stpengine itself — the core never
// persists anything — this is purely host-side history for operators
// investigating an incident after the fact.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// EventKind classifies a row in the events table.
type EventKind string

const (
	EventTopologyChange EventKind = "topology_change"
	EventRoleChanged    EventKind = "role_changed"
)

// Event is one recorded occurrence.
type Event struct {
	ID        int64
	Timestamp time.Time
	Kind      EventKind
	Port      int // -1 for bridge/tree-wide events
	Tree      int
	Detail    string
}

// Store wraps a *sql.DB opened against a SQLite file, lazily
// migrating its schema on Open.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 has no real concurrent-writer story; serialize

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        INTEGER NOT NULL,
	kind      TEXT    NOT NULL,
	port      INTEGER NOT NULL,
	tree      INTEGER NOT NULL,
	detail    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);

CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("audit: migrating schema: %w", err)
	}
	return nil
}

// RecordEvent inserts one row.
func (s *Store) RecordEvent(e Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (ts, kind, port, tree, detail) VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp.Unix(), string(e.Kind), e.Port, e.Tree, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit: recording event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit most recent events, newest first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, kind, port, tree, detail FROM events ORDER BY ts DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		var kind string
		if err := rows.Scan(&e.ID, &ts, &kind, &e.Port, &e.Tree, &e.Detail); err != nil {
			return nil, fmt.Errorf("audit: scanning event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Kind = EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateUser hashes password with bcrypt and stores the operator
// credential mgmtapi authenticates bearer-token requests against.
func (s *Store) CreateUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("audit: hashing password: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO users (username, password_hash) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		username, string(hash),
	)
	if err != nil {
		return fmt.Errorf("audit: storing user %s: %w", username, err)
	}
	return nil
}

// Authenticate reports whether password matches the stored hash for
// username. A missing user and a wrong password are indistinguishable
// to the caller, matching mgmtapi's "never reveal which check failed"
// authentication contract.
func (s *Store) Authenticate(username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("audit: looking up user %s: %w", username, err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
