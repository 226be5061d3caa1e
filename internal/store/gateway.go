package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/metrics"
)

// Gateway routes calls to the primary store until a call fails, then serves every
// later call from memory. The switch is one-way for the life of the process.
type Gateway struct {
	primary Store
	memory  *Memory
	logger  zerolog.Logger

	demo       atomic.Bool
	degradeMu  sync.Mutex
	degradeErr error
}

var _ Store = (*Gateway)(nil)

// NewGateway wraps primary with a memory fallback. A nil primary starts in demo mode.
func NewGateway(primary Store, memory *Memory, logger zerolog.Logger) *Gateway {
	if memory == nil {
		memory = NewMemory()
	}
	g := &Gateway{
		primary: primary,
		memory:  memory,
		logger:  logger.With().Str("component", "store").Logger(),
	}
	if primary == nil {
		g.demo.Store(true)
		metrics.StoreDemoMode.Set(1)
	} else {
		metrics.StoreDemoMode.Set(0)
	}
	return g
}

// Probe pings the primary and degrades to demo when it does not answer.
// Caller cancellation does not degrade.
func (g *Gateway) Probe(ctx context.Context) error {
	if g.Demo() {
		return nil
	}
	if err := g.primary.Ping(ctx); err != nil {
		if ctx.Err() == nil {
			g.degrade("probe", err)
		}
		return err
	}
	return nil
}

func (g *Gateway) Demo() bool {
	return g.demo.Load()
}

func (g *Gateway) Mode() Mode {
	if g.Demo() {
		return ModeDemo
	}
	return ModeConnected
}

// DegradeReason returns the error that caused the switch to demo, if any.
func (g *Gateway) DegradeReason() error {
	g.degradeMu.Lock()
	defer g.degradeMu.Unlock()
	return g.degradeErr
}

// Memory exposes the fallback store.
func (g *Gateway) Memory() *Memory {
	return g.memory
}

func (g *Gateway) degrade(op string, err error) {
	metrics.StoreFallbacks.WithLabelValues(op).Inc()
	if !g.demo.CompareAndSwap(false, true) {
		return
	}
	g.degradeMu.Lock()
	g.degradeErr = err
	g.degradeMu.Unlock()
	metrics.StoreDemoMode.Set(1)
	g.logger.Warn().Err(err).Str("operation", op).Msg("database unavailable, switching to demo mode")
}

// run executes fn against the primary, falling back to memory on failure.
// ErrNotFound and caller cancellation pass through without degrading.
func run[T any](ctx context.Context, g *Gateway, op string, fn func(Store) (T, error)) (T, error) {
	if !g.Demo() {
		out, err := fn(g.primary)
		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return out, err
		}
		g.degrade(op, err)
	}
	return fn(g.memory)
}

func runErr(ctx context.Context, g *Gateway, op string, fn func(Store) error) error {
	_, err := run(ctx, g, op, func(s Store) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

func (g *Gateway) Ping(ctx context.Context) error {
	if g.Demo() {
		return g.memory.Ping(ctx)
	}
	return g.primary.Ping(ctx)
}

func (g *Gateway) MarkNewsStale(ctx context.Context) error {
	return runErr(ctx, g, "mark_news_stale", func(s Store) error { return s.MarkNewsStale(ctx) })
}

func (g *Gateway) UpsertArticle(ctx context.Context, a Article) (UpsertResult, error) {
	return run(ctx, g, "upsert_article", func(s Store) (UpsertResult, error) { return s.UpsertArticle(ctx, a) })
}

func (g *Gateway) ListArticles(ctx context.Context, limit int) ([]Article, error) {
	return run(ctx, g, "list_articles", func(s Store) ([]Article, error) { return s.ListArticles(ctx, limit) })
}

func (g *Gateway) GetArticle(ctx context.Context, id int64) (Article, error) {
	return run(ctx, g, "get_article", func(s Store) (Article, error) { return s.GetArticle(ctx, id) })
}

func (g *Gateway) NewsStats(ctx context.Context) (NewsStats, error) {
	return run(ctx, g, "news_stats", func(s Store) (NewsStats, error) { return s.NewsStats(ctx) })
}

func (g *Gateway) MarkKeywordsStale(ctx context.Context) error {
	return runErr(ctx, g, "mark_keywords_stale", func(s Store) error { return s.MarkKeywordsStale(ctx) })
}

func (g *Gateway) UpsertSnapshot(ctx context.Context, snap KeywordSnapshot) (bool, error) {
	return run(ctx, g, "upsert_snapshot", func(s Store) (bool, error) { return s.UpsertSnapshot(ctx, snap) })
}

func (g *Gateway) UpsertMetric(ctx context.Context, m KeywordMetric) error {
	return runErr(ctx, g, "upsert_metric", func(s Store) error { return s.UpsertMetric(ctx, m) })
}

func (g *Gateway) ListSnapshotsSince(ctx context.Context, since time.Time) ([]KeywordSnapshot, error) {
	return run(ctx, g, "list_snapshots", func(s Store) ([]KeywordSnapshot, error) { return s.ListSnapshotsSince(ctx, since) })
}

func (g *Gateway) ListMetrics(ctx context.Context) ([]KeywordMetric, error) {
	return run(ctx, g, "list_metrics", func(s Store) ([]KeywordMetric, error) { return s.ListMetrics(ctx) })
}

func (g *Gateway) CountSnapshots(ctx context.Context) (int64, error) {
	return run(ctx, g, "count_snapshots", func(s Store) (int64, error) { return s.CountSnapshots(ctx) })
}

func (g *Gateway) MarkRanksStale(ctx context.Context) error {
	return runErr(ctx, g, "mark_ranks_stale", func(s Store) error { return s.MarkRanksStale(ctx) })
}

func (g *Gateway) AppendRankScore(ctx context.Context, r RankScore) (RankScore, error) {
	return run(ctx, g, "append_rank", func(s Store) (RankScore, error) { return s.AppendRankScore(ctx, r) })
}

func (g *Gateway) UpsertRankLatest(ctx context.Context, l RankLatest) error {
	return runErr(ctx, g, "upsert_rank_latest", func(s Store) error { return s.UpsertRankLatest(ctx, l) })
}

func (g *Gateway) ListRankHistory(ctx context.Context, limit int) ([]RankScore, error) {
	return run(ctx, g, "list_rank_history", func(s Store) ([]RankScore, error) { return s.ListRankHistory(ctx, limit) })
}

func (g *Gateway) ListRankLatest(ctx context.Context) ([]RankLatest, error) {
	return run(ctx, g, "list_rank_latest", func(s Store) ([]RankLatest, error) { return s.ListRankLatest(ctx) })
}

func (g *Gateway) CountRankHistory(ctx context.Context) (int64, error) {
	return run(ctx, g, "count_rank_history", func(s Store) (int64, error) { return s.CountRankHistory(ctx) })
}

func (g *Gateway) UpsertTarget(ctx context.Context, t ReferralTarget) (UpsertResult, error) {
	return run(ctx, g, "upsert_target", func(s Store) (UpsertResult, error) { return s.UpsertTarget(ctx, t) })
}

func (g *Gateway) ListTargets(ctx context.Context) ([]ReferralTarget, error) {
	return run(ctx, g, "list_targets", func(s Store) ([]ReferralTarget, error) { return s.ListTargets(ctx) })
}

func (g *Gateway) AddDraft(ctx context.Context, d OutboxDraft) (int64, error) {
	return run(ctx, g, "add_draft", func(s Store) (int64, error) { return s.AddDraft(ctx, d) })
}

func (g *Gateway) ListUnsentDrafts(ctx context.Context) ([]OutboxDraft, error) {
	return run(ctx, g, "list_unsent_drafts", func(s Store) ([]OutboxDraft, error) { return s.ListUnsentDrafts(ctx) })
}

func (g *Gateway) MarkDraftSent(ctx context.Context, id int64) error {
	return runErr(ctx, g, "mark_draft_sent", func(s Store) error { return s.MarkDraftSent(ctx, id) })
}

func (g *Gateway) RecordRun(ctx context.Context, r IngestRun) (int64, error) {
	return run(ctx, g, "record_run", func(s Store) (int64, error) { return s.RecordRun(ctx, r) })
}

func (g *Gateway) ListRuns(ctx context.Context, module string, limit int) ([]IngestRun, error) {
	return run(ctx, g, "list_runs", func(s Store) ([]IngestRun, error) { return s.ListRuns(ctx, module, limit) })
}
