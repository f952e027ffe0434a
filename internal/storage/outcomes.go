package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbernier/docroute/internal/model"
)

// Outcome is one journal record.
type Outcome struct {
	ID          string
	SourcePath  string
	Route       model.Route
	Destination string
	DocType     string
	Supplier    string
	Confidence  float64
	Reason      string
	ProcessedAt time.Time
}

// Record appends an outcome to the journal. The ID is assigned here.
func (j *Journal) Record(ctx context.Context, o *Outcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.ProcessedAt.IsZero() {
		o.ProcessedAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO outcomes (id, source_path, route, destination, doc_type, supplier, confidence, reason, processed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		o.ID, o.SourcePath, string(o.Route), o.Destination,
		o.DocType, o.Supplier, o.Confidence, o.Reason, o.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// ListRecent returns the newest outcomes, most recent first.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
	SELECT id, source_path, route, destination, doc_type, supplier, confidence, reason, processed_at
	FROM outcomes
	ORDER BY processed_at DESC, id
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		var route string
		if err := rows.Scan(&o.ID, &o.SourcePath, &route, &o.Destination,
			&o.DocType, &o.Supplier, &o.Confidence, &o.Reason, &o.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Route = model.Route(route)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// CountByRoute aggregates journal entries per route.
func (j *Journal) CountByRoute(ctx context.Context) (map[model.Route]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT route, COUNT(*) FROM outcomes GROUP BY route`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[model.Route]int)
	for rows.Next() {
		var route string
		var n int
		if err := rows.Scan(&route, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.Route(route)] = n
	}
	return counts, rows.Err()
}
