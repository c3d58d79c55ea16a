package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// schema is executed on every startup, so every statement must be idempotent.
const schema = `
	-- Flowchart documents; data holds the serialized JSON payload
	CREATE TABLE IF NOT EXISTS charts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
`

// Bootstrap makes sure the charts table exists. It must run before any
// request is served.
func (db *DB) Bootstrap(ctx context.Context) error {
	log.Info().Msg("Initializing database schema")

	ctx = context.WithoutCancel(ctx)
	err := db.WithScope(ctx, func(c *Conn) error {
		tx, err := c.begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for i, stmt := range splitSQLStatements(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					log.Error().Err(rbErr).Msg("Failed to rollback transaction")
				}
				return fmt.Errorf("schema statement %d failed: %w", i+1, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("path", db.path).Msg("Database schema ready")
	return nil
}

// splitSQLStatements splits a SQL string into individual statements.
// Comment lines and blank lines are dropped.
func splitSQLStatements(sql string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.SplitSeq(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}

	return statements
}
