package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// TagCount is one bucket of the news tag histogram.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

var newsArticleColumns = []string{
	"id",
	"title",
	"url",
	"tag",
	"summary",
	"image_url",
	"published_at",
	"source",
	"language",
	"fresh",
	"created_at",
	"updated_at",
}

// UpsertNewsArticle inserts or overwrites an article keyed by URL and marks it fresh.
func (p *Pool) UpsertNewsArticle(ctx context.Context, a NewsArticle, now time.Time) (int64, bool, error) {
	const q = `
INSERT INTO news_articles (
	title, url, tag, summary, image_url, published_at, source, language, fresh, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	tag = EXCLUDED.tag,
	summary = EXCLUDED.summary,
	image_url = EXCLUDED.image_url,
	published_at = EXCLUDED.published_at,
	source = EXCLUDED.source,
	language = EXCLUDED.language,
	fresh = TRUE,
	updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS inserted
`

	var (
		id       int64
		inserted bool
	)
	if err := p.QueryRow(ctx, q,
		a.Title,
		a.URL,
		a.Tag,
		a.Summary,
		a.ImageURL,
		a.PublishedAt.UTC(),
		a.Source,
		a.Language,
		now.UTC(),
	).Scan(&id, &inserted); err != nil {
		return 0, false, fmt.Errorf("upsert news article: %w", err)
	}
	return id, inserted, nil
}

// MarkNewsStale clears the fresh flag on every stored article.
func (p *Pool) MarkNewsStale(ctx context.Context) (int64, error) {
	tag, err := p.Exec(ctx, `UPDATE news_articles SET fresh = FALSE WHERE fresh = TRUE`)
	if err != nil {
		return 0, fmt.Errorf("mark news stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListNewsArticles returns the newest articles by published_at.
func (p *Pool) ListNewsArticles(ctx context.Context, limit int) ([]NewsArticle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	b := psql.Select(newsArticleColumns...).
		From("news_articles").
		OrderBy("published_at DESC", "id DESC").
		Limit(uint64(limit))

	rows, err := p.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query news articles: %w", err)
	}
	defer rows.Close()

	items := make([]NewsArticle, 0, limit)
	for rows.Next() {
		row, err := scanNewsArticle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news article rows: %w", err)
	}
	return items, nil
}

// GetNewsArticle loads one article by id. It returns ErrNoRows when absent.
func (p *Pool) GetNewsArticle(ctx context.Context, id int64) (*NewsArticle, error) {
	q, args, err := psql.Select(newsArticleColumns...).
		From("news_articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build news article query: %w", err)
	}

	row, err := scanNewsArticle(p.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// NewsCounts returns the total and fresh article counts.
func (p *Pool) NewsCounts(ctx context.Context) (int64, int64, error) {
	const q = `
SELECT
	COUNT(*)::BIGINT,
	COUNT(*) FILTER (WHERE fresh)::BIGINT
FROM news_articles
`
	var total, fresh int64
	if err := p.QueryRow(ctx, q).Scan(&total, &fresh); err != nil {
		return 0, 0, fmt.Errorf("count news articles: %w", err)
	}
	return total, fresh, nil
}

// NewsTagCounts returns the article count per tag, largest first.
func (p *Pool) NewsTagCounts(ctx context.Context) ([]TagCount, error) {
	const q = `
SELECT tag, COUNT(*)::BIGINT AS n
FROM news_articles
GROUP BY tag
ORDER BY n DESC, tag ASC
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query news tag counts: %w", err)
	}
	defer rows.Close()

	out := make([]TagCount, 0, 8)
	for rows.Next() {
		var row TagCount
		if err := rows.Scan(&row.Tag, &row.Count); err != nil {
			return nil, fmt.Errorf("scan news tag count: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news tag counts: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNewsArticle(s scanner) (NewsArticle, error) {
	var row NewsArticle
	if err := s.Scan(
		&row.ID,
		&row.Title,
		&row.URL,
		&row.Tag,
		&row.Summary,
		&row.ImageURL,
		&row.PublishedAt,
		&row.Source,
		&row.Language,
		&row.Fresh,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		if IsNoRows(err) {
			return NewsArticle{}, err
		}
		return NewsArticle{}, fmt.Errorf("scan news article: %w", err)
	}
	return row, nil
}
