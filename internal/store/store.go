// Package store holds the persistence contract shared by every dashboard module,
// with a Postgres implementation, an in-memory implementation, and a Gateway that
// degrades from the former to the latter.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

type Mode string

const (
	ModeConnected Mode = "connected"
	ModeDemo      Mode = "demo"
)

type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Tag         string    `json:"tag"`
	Summary     string    `json:"summary"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Language    string    `json:"language,omitempty"`
	Fresh       bool      `json:"fresh"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

type NewsStats struct {
	Total int64      `json:"total"`
	Fresh int64      `json:"fresh"`
	ByTag []TagCount `json:"byTag"`
}

// KeywordSnapshot is one day of Search Console data for one keyword.
type KeywordSnapshot struct {
	Keyword     string    `json:"keyword"`
	Date        time.Time `json:"date"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	Fresh       bool      `json:"fresh"`
	CapturedAt  time.Time `json:"created_at"`
}

// KeywordMetric is the rollup of the most recent update for one keyword.
type KeywordMetric struct {
	Keyword     string    `json:"keyword"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	Samples     int       `json:"samples"`
	Fresh       bool      `json:"fresh"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RankScore struct {
	ID        int64     `json:"id"`
	Model     string    `json:"model"`
	Score     int       `json:"score"`
	Rank      *int      `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
}

type RankLatest struct {
	Model     string    `json:"model"`
	Score     int       `json:"score"`
	Rank      *int      `json:"rank"`
	Fresh     bool      `json:"fresh"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReferralTarget struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Firm      string    `json:"firm,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type OutboxDraft struct {
	ID          int64     `json:"id"`
	TargetID    int64     `json:"target_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Sent        bool      `json:"sent"`
	CreatedAt   time.Time `json:"created_at"`
	TargetName  string    `json:"target_name"`
	TargetEmail string    `json:"target_email"`
}

const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// IngestRun is the record of one pass of a refresh pipeline.
type IngestRun struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Module     string    `json:"module"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`
	Stored     int       `json:"stored"`
	Demo       bool      `json:"demo"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type UpsertResult struct {
	ID       int64
	Inserted bool
}

type NewsStore interface {
	MarkNewsStale(ctx context.Context) error
	UpsertArticle(ctx context.Context, a Article) (UpsertResult, error)
	ListArticles(ctx context.Context, limit int) ([]Article, error)
	GetArticle(ctx context.Context, id int64) (Article, error)
	NewsStats(ctx context.Context) (NewsStats, error)
}

type KeywordStore interface {
	MarkKeywordsStale(ctx context.Context) error
	UpsertSnapshot(ctx context.Context, s KeywordSnapshot) (bool, error)
	UpsertMetric(ctx context.Context, m KeywordMetric) error
	ListSnapshotsSince(ctx context.Context, since time.Time) ([]KeywordSnapshot, error)
	ListMetrics(ctx context.Context) ([]KeywordMetric, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

type RankStore interface {
	MarkRanksStale(ctx context.Context) error
	AppendRankScore(ctx context.Context, s RankScore) (RankScore, error)
	UpsertRankLatest(ctx context.Context, l RankLatest) error
	ListRankHistory(ctx context.Context, limit int) ([]RankScore, error)
	ListRankLatest(ctx context.Context) ([]RankLatest, error)
	CountRankHistory(ctx context.Context) (int64, error)
}

type ReferralStore interface {
	UpsertTarget(ctx context.Context, t ReferralTarget) (UpsertResult, error)
	ListTargets(ctx context.Context) ([]ReferralTarget, error)
	AddDraft(ctx context.Context, d OutboxDraft) (int64, error)
	ListUnsentDrafts(ctx context.Context) ([]OutboxDraft, error)
	MarkDraftSent(ctx context.Context, id int64) error
}

type RunStore interface {
	RecordRun(ctx context.Context, r IngestRun) (int64, error)
	// ListRuns returns the newest runs first. An empty module lists every module.
	ListRuns(ctx context.Context, module string, limit int) ([]IngestRun, error)
}

// Store is the full persistence surface. Memory, Postgres and Gateway implement it.
type Store interface {
	NewsStore
	KeywordStore
	RankStore
	ReferralStore
	RunStore
	Ping(ctx context.Context) error
}
