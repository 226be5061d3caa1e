package db

import (
	"context"
	"fmt"
	"time"
)

// InsertAIRankScore appends one ranking result to the history table.
func (p *Pool) InsertAIRankScore(ctx context.Context, s AIRankScore, now time.Time) (int64, error) {
	const q = `
INSERT INTO ai_rank_scores (model, score, rank, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	var id int64
	if err := p.QueryRow(ctx, q, s.Model, s.Score, s.Rank, now.UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert ai rank score: %w", err)
	}
	return id, nil
}

// UpsertAIRankLatest replaces the latest row for a model and marks it fresh.
func (p *Pool) UpsertAIRankLatest(ctx context.Context, s AIRankLatest, now time.Time) error {
	const q = `
INSERT INTO ai_rank_latest (model, score, rank, fresh, updated_at)
VALUES ($1, $2, $3, TRUE, $4)
ON CONFLICT (model) DO UPDATE SET
	score = EXCLUDED.score,
	rank = EXCLUDED.rank,
	fresh = TRUE,
	updated_at = EXCLUDED.updated_at
`
	if _, err := p.Exec(ctx, q, s.Model, s.Score, s.Rank, now.UTC()); err != nil {
		return fmt.Errorf("upsert ai rank latest: %w", err)
	}
	return nil
}

func (p *Pool) MarkAIRankStale(ctx context.Context) error {
	if _, err := p.Exec(ctx, `UPDATE ai_rank_latest SET fresh = FALSE WHERE fresh = TRUE`); err != nil {
		return fmt.Errorf("mark ai rank stale: %w", err)
	}
	return nil
}

// ListAIRankHistory returns the newest history rows first.
func (p *Pool) ListAIRankHistory(ctx context.Context, limit int) ([]AIRankScore, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	b := psql.Select("id", "model", "score", "rank", "created_at").
		From("ai_rank_scores").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query ai rank history: %w", err)
	}
	defer rows.Close()

	out := make([]AIRankScore, 0, limit)
	for rows.Next() {
		var row AIRankScore
		if err := rows.Scan(&row.ID, &row.Model, &row.Score, &row.Rank, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ai rank score: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai rank history: %w", err)
	}
	return out, nil
}

func (p *Pool) ListAIRankLatest(ctx context.Context) ([]AIRankLatest, error) {
	b := psql.Select("model", "score", "rank", "fresh", "updated_at").
		From("ai_rank_latest").
		OrderBy("model ASC")

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query ai rank latest: %w", err)
	}
	defer rows.Close()

	out := make([]AIRankLatest, 0, 4)
	for rows.Next() {
		var row AIRankLatest
		if err := rows.Scan(&row.Model, &row.Score, &row.Rank, &row.Fresh, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ai rank latest: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai rank latest: %w", err)
	}
	return out, nil
}

func (p *Pool) CountAIRankScores(ctx context.Context) (int64, error) {
	var n int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*)::BIGINT FROM ai_rank_scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ai rank scores: %w", err)
	}
	return n, nil
}
