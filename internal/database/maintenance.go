package database

import (
	"context"
	"fmt"
)

// Optimize runs SQLite's PRAGMA optimize to refresh planner stats.
func (db *DB) Optimize(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return fmt.Errorf("database not initialized")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	return db.WithScope(ctx, func(c *Conn) error {
		if _, err := c.exec(ctx, "PRAGMA optimize"); err != nil {
			return fmt.Errorf("failed to optimize database: %w", err)
		}
		return nil
	})
}

// Vacuum rebuilds the database file to reclaim space left by deleted charts.
func (db *DB) Vacuum(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return fmt.Errorf("database not initialized")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	return db.WithScope(ctx, func(c *Conn) error {
		if _, err := c.exec(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("failed to vacuum database: %w", err)
		}
		return nil
	})
}
