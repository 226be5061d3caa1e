package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (p *Pool) InsertIngestRun(ctx context.Context, r IngestRun) (int64, error) {
	const q = `
INSERT INTO ingest_runs (run_id, module, status, fetched, stored, demo, error_message, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`
	var id int64
	err := p.QueryRow(ctx, q,
		r.RunID, r.Module, r.Status, r.Fetched, r.Stored, r.Demo, r.Error,
		r.StartedAt.UTC(), r.FinishedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ingest run: %w", err)
	}
	return id, nil
}

// ListIngestRuns returns the newest runs first, optionally for one module.
func (p *Pool) ListIngestRuns(ctx context.Context, module string, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	b := psql.Select(
		"id", "run_id", "module", "status", "fetched", "stored", "demo", "error_message", "started_at", "finished_at",
	).
		From("ingest_runs").
		OrderBy("started_at DESC", "id DESC").
		Limit(uint64(limit))
	if module != "" {
		b = b.Where(sq.Eq{"module": module})
	}

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	out := make([]IngestRun, 0, limit)
	for rows.Next() {
		var row IngestRun
		if err := rows.Scan(
			&row.ID, &row.RunID, &row.Module, &row.Status, &row.Fetched, &row.Stored,
			&row.Demo, &row.Error, &row.StartedAt, &row.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return out, nil
}
