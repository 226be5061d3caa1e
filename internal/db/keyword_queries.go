package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// MarkKeywordsStale clears the fresh flag on snapshots and rollups.
func (p *Pool) MarkKeywordsStale(ctx context.Context) error {
	if _, err := p.Exec(ctx, `UPDATE keyword_snapshots SET fresh = FALSE WHERE fresh = TRUE`); err != nil {
		return fmt.Errorf("mark keyword snapshots stale: %w", err)
	}
	if _, err := p.Exec(ctx, `UPDATE keyword_metrics SET fresh = FALSE WHERE fresh = TRUE`); err != nil {
		return fmt.Errorf("mark keyword metrics stale: %w", err)
	}
	return nil
}

// UpsertKeywordSnapshot writes one (keyword, date) sample.
func (p *Pool) UpsertKeywordSnapshot(ctx context.Context, s KeywordSnapshot, now time.Time) (bool, error) {
	const q = `
INSERT INTO keyword_snapshots (keyword, date, clicks, impressions, ctr, position, fresh, created_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
ON CONFLICT (keyword, date) DO UPDATE SET
	clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position,
	fresh = TRUE,
	created_at = EXCLUDED.created_at
RETURNING (xmax = 0) AS inserted
`
	var inserted bool
	if err := p.QueryRow(ctx, q,
		s.Keyword,
		s.Date.UTC(),
		s.Clicks,
		s.Impressions,
		s.CTR,
		s.Position,
		now.UTC(),
	).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert keyword snapshot: %w", err)
	}
	return inserted, nil
}

// UpsertKeywordMetric writes the rollup row for one keyword.
func (p *Pool) UpsertKeywordMetric(ctx context.Context, m KeywordMetric, now time.Time) error {
	const q = `
INSERT INTO keyword_metrics (keyword, clicks, impressions, ctr, position, samples, fresh, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
ON CONFLICT (keyword) DO UPDATE SET
	clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position,
	samples = EXCLUDED.samples,
	fresh = TRUE,
	updated_at = EXCLUDED.updated_at
`
	if _, err := p.Exec(ctx, q,
		m.Keyword,
		m.Clicks,
		m.Impressions,
		m.CTR,
		m.Position,
		m.Samples,
		now.UTC(),
	); err != nil {
		return fmt.Errorf("upsert keyword metric: %w", err)
	}
	return nil
}

// ListKeywordSnapshotsSince returns samples dated on or after since, grouped by keyword, newest first.
func (p *Pool) ListKeywordSnapshotsSince(ctx context.Context, since time.Time) ([]KeywordSnapshot, error) {
	b := psql.Select("id", "keyword", "date", "clicks", "impressions", "ctr", "position", "fresh", "created_at").
		From("keyword_snapshots").
		Where(sq.GtOrEq{"date": since.UTC()}).
		OrderBy("keyword ASC", "date DESC")

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query keyword snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]KeywordSnapshot, 0, 64)
	for rows.Next() {
		var row KeywordSnapshot
		if err := rows.Scan(
			&row.ID,
			&row.Keyword,
			&row.Date,
			&row.Clicks,
			&row.Impressions,
			&row.CTR,
			&row.Position,
			&row.Fresh,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan keyword snapshot: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword snapshots: %w", err)
	}
	return out, nil
}

func (p *Pool) ListKeywordMetrics(ctx context.Context) ([]KeywordMetric, error) {
	b := psql.Select("keyword", "clicks", "impressions", "ctr", "position", "samples", "fresh", "updated_at").
		From("keyword_metrics").
		OrderBy("keyword ASC")

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query keyword metrics: %w", err)
	}
	defer rows.Close()

	out := make([]KeywordMetric, 0, 8)
	for rows.Next() {
		var row KeywordMetric
		if err := rows.Scan(
			&row.Keyword,
			&row.Clicks,
			&row.Impressions,
			&row.CTR,
			&row.Position,
			&row.Samples,
			&row.Fresh,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan keyword metric: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword metrics: %w", err)
	}
	return out, nil
}

func (p *Pool) CountKeywordSnapshots(ctx context.Context) (int64, error) {
	var n int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*)::BIGINT FROM keyword_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count keyword snapshots: %w", err)
	}
	return n, nil
}
