package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection pool. Callers never touch the pool directly;
// every unit of work goes through a Scope.
type DB struct {
	pool *sql.DB
	path string
	mu   sync.Mutex
}

// New opens the database file, creating it if it does not exist yet.
func New(path string) (*DB, error) {
	// WAL lets readers proceed while a writer holds the lock; busy_timeout makes
	// concurrent writers wait on SQLite's file lock instead of failing immediately.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)

	log.Debug().Str("path", path).Msg("Database connection established")

	return &DB{
		pool: pool,
		path: path,
	}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Close closes the underlying pool. Scopes still holding a connection keep it
// until they are released.
func (db *DB) Close() error {
	return db.pool.Close()
}

// WithScope runs fn with a freshly scoped connection and releases it afterwards,
// whatever fn returns.
func (db *DB) WithScope(ctx context.Context, fn func(*Conn) error) error {
	scope := NewScope(db)
	defer scope.Release()

	conn, err := scope.Conn(ctx)
	if err != nil {
		return err
	}
	return fn(conn)
}

// Stats returns connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.pool.Stats()
}
