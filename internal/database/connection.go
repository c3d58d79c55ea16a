package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Conn is a single storage handle. It is owned by exactly one Scope and is
// never shared between requests.
//
// Every statement runs on a context detached from the caller's cancellation:
// once a request reaches the store, its statement runs to completion.
type Conn struct {
	conn *sql.Conn
}

func (c *Conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(context.WithoutCancel(ctx), query, args...)
}

func (c *Conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(context.WithoutCancel(ctx), query, args...)
}

func (c *Conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(context.WithoutCancel(ctx), query, args...)
}

func (c *Conn) begin(ctx context.Context) (*sql.Tx, error) {
	return c.conn.BeginTx(context.WithoutCancel(ctx), nil)
}

// Scope hands out one connection for the lifetime of a request. The connection
// is opened on the first call to Conn and closed by Release.
//
// A Scope is not safe for concurrent use.
type Scope struct {
	db   *DB
	conn *Conn
}

// NewScope creates an empty scope; nothing is acquired until Conn is called.
func NewScope(db *DB) *Scope {
	return &Scope{db: db}
}

// Conn returns the scope's connection, opening it on first use.
func (s *Scope) Conn(ctx context.Context) (*Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	c, err := s.db.pool.Conn(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	s.conn = &Conn{conn: c}
	return s.conn, nil
}

// Acquired reports whether the scope currently holds a connection.
func (s *Scope) Acquired() bool {
	return s.conn != nil
}

// Release closes the connection if one was opened. Calling it more than once
// is a no-op.
func (s *Scope) Release() {
	if s.conn == nil {
		return
	}

	if err := s.conn.conn.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to release database connection")
	}
	s.conn = nil
}
