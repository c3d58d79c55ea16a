package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChartNotFound is returned by GetChart when no row has the given id.
	ErrChartNotFound = errors.New("chart not found")

	// ErrCorruptChart means a stored data column no longer holds valid JSON.
	// Rows are only ever written through this package, so this is never a
	// normal condition.
	ErrCorruptChart = errors.New("stored chart data is not valid JSON")
)

// CreatedAtLayout is the ISO-8601 form used for created_at (UTC, microseconds,
// no zone suffix).
const CreatedAtLayout = "2006-01-02T15:04:05.000000"

// nowFunc is replaced in tests
var nowFunc = time.Now

// ValidationError reports a missing or malformed field in a create or update call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Chart is a named flowchart document. Data is kept as raw JSON; its shape is
// owned by the editor, not by this service.
type Chart struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

// ChartSummary is the list representation of a chart. It never carries data.
type ChartSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ListCharts returns every chart, newest id first.
func ListCharts(ctx context.Context, c *Conn) ([]*ChartSummary, error) {
	rows, err := c.query(ctx, `
		SELECT id, name, created_at
		FROM charts
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer rows.Close()

	charts := []*ChartSummary{}
	for rows.Next() {
		s := &ChartSummary{}
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chart: %w", err)
		}
		charts = append(charts, s)
	}
	return charts, rows.Err()
}

// GetChart returns the full chart with the given id.
func GetChart(ctx context.Context, c *Conn, id int64) (*Chart, error) {
	var (
		chart Chart
		data  string
	)
	err := c.queryRow(ctx, `
		SELECT id, name, data, created_at
		FROM charts
		WHERE id = ?
	`, id).Scan(&chart.ID, &chart.Name, &data, &chart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart %d: %w", id, err)
	}

	raw, ok := unmarshalFromString(data)
	if !ok {
		return nil, fmt.Errorf("chart %d: %w", id, ErrCorruptChart)
	}
	chart.Data = raw
	return &chart, nil
}

// CreateChart inserts a new chart and returns its id. The id and created_at
// are always assigned here, never by the caller.
func CreateChart(ctx context.Context, c *Conn, name string, data json.RawMessage) (int64, error) {
	if name == "" {
		return 0, &ValidationError{Field: "name", Message: "Missing 'name' or 'data' in request body"}
	}
	if isMissingJSON(data) {
		return 0, &ValidationError{Field: "data", Message: "Missing 'name' or 'data' in request body"}
	}

	payload, err := marshalToString(data)
	if err != nil {
		return 0, &ValidationError{Field: "data", Message: "'data' must be valid JSON"}
	}

	createdAt := nowFunc().UTC().Format(CreatedAtLayout)

	result, err := c.exec(ctx, `
		INSERT INTO charts (name, data, created_at)
		VALUES (?, ?, ?)
	`, name, payload, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create chart: %w", err)
	}

	// last_insert_rowid is per connection; c is the connection that just inserted.
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new chart id: %w", err)
	}
	return id, nil
}

// UpdateChart overwrites name and data of the chart with the given id. An
// empty name is stored as is. No error is returned when the id does not exist.
func UpdateChart(ctx context.Context, c *Conn, id int64, name string, data json.RawMessage) error {
	if isMissingJSON(data) {
		return &ValidationError{Field: "data", Message: "Missing 'data' in request body"}
	}

	payload, err := marshalToString(data)
	if err != nil {
		return &ValidationError{Field: "data", Message: "'data' must be valid JSON"}
	}

	if _, err := c.exec(ctx, `
		UPDATE charts SET name = ?, data = ?
		WHERE id = ?
	`, name, payload, id); err != nil {
		return fmt.Errorf("failed to update chart %d: %w", id, err)
	}
	return nil
}

// DeleteChart removes the chart with the given id. Deleting a missing id succeeds.
func DeleteChart(ctx context.Context, c *Conn, id int64) error {
	if _, err := c.exec(ctx, "DELETE FROM charts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chart %d: %w", id, err)
	}
	return nil
}
