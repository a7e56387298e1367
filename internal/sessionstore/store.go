// Package sessionstore provides a SQLite-backed session.Store, so that a
// conversation resumes where it stopped after the process restarts.
package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/chatgraph/internal/session"
	"github.com/specialistvlad/chatgraph/internal/sessionstore/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const updateAttempts = 3

// Store persists session state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get returns the stored state, or session.ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*session.State, error) {
	return get(ctx, s.sqlDB, sessionID)
}

func get(ctx context.Context, q queryer, sessionID string) (*session.State, error) {
	var (
		st          session.State
		observation string
		closed      int
		updatedAt   int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT session_id, company_id, platform, menu, route, observation, closed, updated_at
		   FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&st.SessionID, &st.CompanyID, &st.Platform, &st.Menu, &st.Route, &observation, &closed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(observation), &st.Observation); err != nil {
		return nil, fmt.Errorf("decode observation of session %s: %w", sessionID, err)
	}
	if st.Observation == nil {
		st.Observation = map[string]string{}
	}
	st.Closed = closed != 0
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

// Put inserts or replaces a session.
func (s *Store) Put(ctx context.Context, st *session.State) error {
	if strings.TrimSpace(st.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	c := st.Clone()
	c.UpdatedAt = s.now()
	return put(ctx, s.sqlDB, c)
}

func put(ctx context.Context, e execer, st *session.State) error {
	observation := st.Observation
	if observation == nil {
		observation = map[string]string{}
	}
	raw, err := json.Marshal(observation)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	closed := 0
	if st.Closed {
		closed = 1
	}
	route := st.Route
	if route == "" {
		route = "start"
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO sessions (session_id, company_id, platform, menu, route, observation, closed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   company_id = excluded.company_id,
		   platform = excluded.platform,
		   menu = excluded.menu,
		   route = excluded.route,
		   observation = excluded.observation,
		   closed = excluded.closed,
		   updated_at = excluded.updated_at`,
		st.SessionID, st.CompanyID, st.Platform, st.Menu, route, string(raw), closed, toMillis(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", st.SessionID, err)
	}
	return nil
}

// Update reads, modifies and writes a session in one immediate transaction.
// Busy errors from concurrent writers are retried a few times.
func (s *Store) Update(ctx context.Context, sessionID string, fn func(st *session.State) error) error {
	var err error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		err = s.update(ctx, sessionID, fn)
		if !isBusy(err) {
			return err
		}
	}
	return err
}

func (s *Store) update(ctx context.Context, sessionID string, fn func(st *session.State) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st, err := get(ctx, tx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		st = session.NewState(sessionID)
	} else if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	st.SessionID = sessionID
	st.UpdatedAt = s.now()
	if err := put(ctx, tx, st); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// PurgeClosed deletes closed sessions not updated since before.
func (s *Store) PurgeClosed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM sessions WHERE closed = 1 AND updated_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("purge closed sessions: %w", err)
	}
	return res.RowsAffected()
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

var _ session.Store = (*Store)(nil)
