package scratch

import (
	"context"
	"database/sql"
	"time"
)

// SQLite persists scratch entries in the workspace database so CLI
// invocations and reloads see the same in-progress state. Scope separates
// independent workflows sharing one database.
type SQLite struct {
	DB    *sql.DB
	Scope string
	Now   func() time.Time
}

func NewSQLite(db *sql.DB, scope string) *SQLite {
	if scope == "" {
		scope = "default"
	}
	return &SQLite{DB: db, Scope: scope, Now: time.Now}
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM scratch WHERE scope=? AND key=?`, s.Scope, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	ts := s.now().UTC().Format(time.RFC3339)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scratch(scope,key,value,updated_at) VALUES (?,?,?,?)
		 ON CONFLICT(scope,key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		s.Scope, key, value, ts)
	return err
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM scratch WHERE scope=? AND key=?`, s.Scope, key)
	return err
}
