package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"northpointtriallaw.com/opsdash/internal/db"
	"northpointtriallaw.com/opsdash/internal/globaltime"
)

// Postgres is the relational Store backed by the gorm pool.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) MarkNewsStale(ctx context.Context) error {
	_, err := p.pool.MarkNewsStale(ctx)
	return err
}

func (p *Postgres) UpsertArticle(ctx context.Context, a Article) (UpsertResult, error) {
	id, inserted, err := p.pool.UpsertNewsArticle(ctx, db.NewsArticle{
		Title:       a.Title,
		URL:         strings.TrimSpace(a.URL),
		Tag:         a.Tag,
		Summary:     a.Summary,
		ImageURL:    optionalString(a.ImageURL),
		PublishedAt: a.PublishedAt,
		Source:      a.Source,
		Language:    a.Language,
	}, globaltime.UTC())
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ID: id, Inserted: inserted}, nil
}

func (p *Postgres) ListArticles(ctx context.Context, limit int) ([]Article, error) {
	rows, err := p.pool.ListNewsArticles(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Article, 0, len(rows))
	for _, row := range rows {
		out = append(out, articleFromRow(row))
	}
	return out, nil
}

func (p *Postgres) GetArticle(ctx context.Context, id int64) (Article, error) {
	row, err := p.pool.GetNewsArticle(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return Article{}, ErrNotFound
		}
		return Article{}, err
	}
	return articleFromRow(*row), nil
}

func (p *Postgres) NewsStats(ctx context.Context) (NewsStats, error) {
	total, fresh, err := p.pool.NewsCounts(ctx)
	if err != nil {
		return NewsStats{}, err
	}
	tags, err := p.pool.NewsTagCounts(ctx)
	if err != nil {
		return NewsStats{}, err
	}

	stats := NewsStats{Total: total, Fresh: fresh, ByTag: make([]TagCount, 0, len(tags))}
	for _, tag := range tags {
		stats.ByTag = append(stats.ByTag, TagCount{Tag: tag.Tag, Count: tag.Count})
	}
	sortTagCounts(stats.ByTag)
	return stats, nil
}

func (p *Postgres) MarkKeywordsStale(ctx context.Context) error {
	return p.pool.MarkKeywordsStale(ctx)
}

func (p *Postgres) UpsertSnapshot(ctx context.Context, s KeywordSnapshot) (bool, error) {
	if strings.TrimSpace(s.Keyword) == "" {
		return false, fmt.Errorf("snapshot keyword is required")
	}
	return p.pool.UpsertKeywordSnapshot(ctx, db.KeywordSnapshot{
		Keyword:     s.Keyword,
		Date:        globaltime.DateOf(s.Date),
		Clicks:      s.Clicks,
		Impressions: s.Impressions,
		CTR:         s.CTR,
		Position:    s.Position,
	}, globaltime.UTC())
}

func (p *Postgres) UpsertMetric(ctx context.Context, m KeywordMetric) error {
	return p.pool.UpsertKeywordMetric(ctx, db.KeywordMetric{
		Keyword:     m.Keyword,
		Clicks:      m.Clicks,
		Impressions: m.Impressions,
		CTR:         m.CTR,
		Position:    m.Position,
		Samples:     m.Samples,
	}, globaltime.UTC())
}

func (p *Postgres) ListSnapshotsSince(ctx context.Context, since time.Time) ([]KeywordSnapshot, error) {
	rows, err := p.pool.ListKeywordSnapshotsSince(ctx, globaltime.DateOf(since))
	if err != nil {
		return nil, err
	}
	out := make([]KeywordSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, KeywordSnapshot{
			Keyword:     row.Keyword,
			Date:        globaltime.DateOf(row.Date),
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Position:    row.Position,
			Fresh:       row.Fresh,
			CapturedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (p *Postgres) ListMetrics(ctx context.Context) ([]KeywordMetric, error) {
	rows, err := p.pool.ListKeywordMetrics(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]KeywordMetric, 0, len(rows))
	for _, row := range rows {
		out = append(out, KeywordMetric{
			Keyword:     row.Keyword,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Position:    row.Position,
			Samples:     row.Samples,
			Fresh:       row.Fresh,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

func (p *Postgres) CountSnapshots(ctx context.Context) (int64, error) {
	return p.pool.CountKeywordSnapshots(ctx)
}

func (p *Postgres) MarkRanksStale(ctx context.Context) error {
	return p.pool.MarkAIRankStale(ctx)
}

func (p *Postgres) AppendRankScore(ctx context.Context, s RankScore) (RankScore, error) {
	now := globaltime.UTC()
	id, err := p.pool.InsertAIRankScore(ctx, db.AIRankScore{
		Model: s.Model,
		Score: s.Score,
		Rank:  copyInt(s.Rank),
	}, now)
	if err != nil {
		return RankScore{}, err
	}
	return RankScore{ID: id, Model: s.Model, Score: s.Score, Rank: copyInt(s.Rank), CreatedAt: now}, nil
}

func (p *Postgres) UpsertRankLatest(ctx context.Context, l RankLatest) error {
	return p.pool.UpsertAIRankLatest(ctx, db.AIRankLatest{
		Model: l.Model,
		Score: l.Score,
		Rank:  copyInt(l.Rank),
	}, globaltime.UTC())
}

func (p *Postgres) ListRankHistory(ctx context.Context, limit int) ([]RankScore, error) {
	rows, err := p.pool.ListAIRankHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RankScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, RankScore{
			ID:        row.ID,
			Model:     row.Model,
			Score:     row.Score,
			Rank:      row.Rank,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (p *Postgres) ListRankLatest(ctx context.Context) ([]RankLatest, error) {
	rows, err := p.pool.ListAIRankLatest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RankLatest, 0, len(rows))
	for _, row := range rows {
		out = append(out, RankLatest{
			Model:     row.Model,
			Score:     row.Score,
			Rank:      row.Rank,
			Fresh:     row.Fresh,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (p *Postgres) CountRankHistory(ctx context.Context) (int64, error) {
	return p.pool.CountAIRankScores(ctx)
}

func (p *Postgres) UpsertTarget(ctx context.Context, t ReferralTarget) (UpsertResult, error) {
	email := strings.ToLower(strings.TrimSpace(t.Email))
	if email == "" {
		return UpsertResult{}, fmt.Errorf("target email is required")
	}
	id, inserted, err := p.pool.UpsertReferralTarget(ctx, db.ReferralTarget{
		Email:     email,
		FirstName: t.FirstName,
		LastName:  t.LastName,
		Firm:      optionalString(t.Firm),
		City:      optionalString(t.City),
	}, globaltime.UTC())
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ID: id, Inserted: inserted}, nil
}

func (p *Postgres) ListTargets(ctx context.Context) ([]ReferralTarget, error) {
	rows, err := p.pool.ListReferralTargets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReferralTarget, 0, len(rows))
	for _, row := range rows {
		out = append(out, ReferralTarget{
			ID:        row.ID,
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Firm:      derefString(row.Firm),
			City:      derefString(row.City),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (p *Postgres) AddDraft(ctx context.Context, d OutboxDraft) (int64, error) {
	id, err := p.pool.InsertReferralDraft(ctx, db.ReferralOutbox{
		TargetID: d.TargetID,
		Subject:  d.Subject,
		Body:     d.Body,
	}, globaltime.UTC())
	if db.IsNoRows(err) {
		return 0, fmt.Errorf("draft target %d: %w", d.TargetID, ErrNotFound)
	}
	return id, err
}

func (p *Postgres) ListUnsentDrafts(ctx context.Context) ([]OutboxDraft, error) {
	rows, err := p.pool.ListUnsentDrafts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OutboxDraft, 0, len(rows))
	for _, row := range rows {
		out = append(out, OutboxDraft{
			ID:          row.ID,
			TargetID:    row.TargetID,
			Subject:     row.Subject,
			Body:        row.Body,
			Sent:        row.Sent,
			CreatedAt:   row.CreatedAt,
			TargetName:  strings.TrimSpace(row.TargetName),
			TargetEmail: row.TargetEmail,
		})
	}
	return out, nil
}

func (p *Postgres) MarkDraftSent(ctx context.Context, id int64) error {
	n, err := p.pool.MarkReferralDraftSent(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func articleFromRow(row db.NewsArticle) Article {
	return Article{
		ID:          row.ID,
		Title:       row.Title,
		URL:         row.URL,
		Tag:         row.Tag,
		Summary:     row.Summary,
		ImageURL:    derefString(row.ImageURL),
		PublishedAt: row.PublishedAt.UTC(),
		Source:      row.Source,
		Language:    row.Language,
		Fresh:       row.Fresh,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (p *Postgres) RecordRun(ctx context.Context, r IngestRun) (int64, error) {
	return p.pool.InsertIngestRun(ctx, db.IngestRun{
		RunID:      r.RunID,
		Module:     r.Module,
		Status:     r.Status,
		Fetched:    r.Fetched,
		Stored:     r.Stored,
		Demo:       r.Demo,
		Error:      optionalString(r.Error),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	})
}

func (p *Postgres) ListRuns(ctx context.Context, module string, limit int) ([]IngestRun, error) {
	rows, err := p.pool.ListIngestRuns(ctx, strings.TrimSpace(module), limit)
	if err != nil {
		return nil, err
	}
	out := make([]IngestRun, 0, len(rows))
	for _, row := range rows {
		out = append(out, IngestRun{
			ID:         row.ID,
			RunID:      row.RunID,
			Module:     row.Module,
			Status:     row.Status,
			Fetched:    row.Fetched,
			Stored:     row.Stored,
			Demo:       row.Demo,
			Error:      derefString(row.Error),
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt,
		})
	}
	return out, nil
}
