// Package keywords tracks Search Console performance for the firm's target
// keywords and raises position alerts.
package keywords

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/ingest"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/store"
)

const moduleName = "keywords"

type Store interface {
	store.KeywordStore
	Demo() bool
}

type Service struct {
	store     Store
	primary   AuthSource
	synthetic Source
	keywords  []string
	days      int
	runs      *ingest.Recorder
	logger    zerolog.Logger
}

// NewService uses primary when it authenticates and synthetic otherwise.
// primary may be nil.
func NewService(st Store, primary AuthSource, synthetic Source, keywords []string, logger zerolog.Logger) *Service {
	if synthetic == nil {
		synthetic = NewSyntheticSource(nil)
	}
	return &Service{
		store:     st,
		primary:   primary,
		synthetic: synthetic,
		keywords:  append([]string(nil), keywords...),
		days:      DefaultDays,
		logger:    logger,
	}
}

// WithRunLog records every update pass in runs.
func (s *Service) WithRunLog(runs *ingest.Recorder) *Service {
	s.runs = runs
	return s
}

func (s *Service) Keywords() []string {
	return append([]string(nil), s.keywords...)
}

type UpdateResult struct {
	RunID      string
	Keywords   []string
	DataPoints int
	Stored     int
	Synthetic  bool
	Demo       bool
}

// Update pulls the window of samples, dedupes them by keyword and day, upserts each
// snapshot and refreshes the per-keyword rollup.
func (s *Service) Update(ctx context.Context) (UpdateResult, error) {
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()
	run := s.runs.Start(moduleName, runID)

	if err := s.store.MarkKeywordsStale(ctx); err != nil {
		metrics.RefreshRuns.WithLabelValues(moduleName, "error").Inc()
		err = fmt.Errorf("mark keywords stale: %w", err)
		run.Fail(ctx, err)
		return UpdateResult{}, err
	}

	fetched := s.fetch(ctx)
	batch := dedupeSnapshots(fetched.Snapshots)
	log.Info().Str("source", s.sourceName(fetched)).Int("data_points", len(fetched.Snapshots)).Msg("fetched keyword data")

	result := UpdateResult{
		RunID:      runID,
		Keywords:   s.Keywords(),
		DataPoints: len(fetched.Snapshots),
		Synthetic:  fetched.Synthetic,
	}

	byKeyword := make(map[string][]store.KeywordSnapshot, len(s.keywords))
	order := make([]string, 0, len(s.keywords))
	for _, snap := range batch {
		if _, err := s.store.UpsertSnapshot(ctx, snap); err != nil {
			metrics.IngestedRecords.WithLabelValues(moduleName, "error").Inc()
			log.Error().Err(err).Str("keyword", snap.Keyword).Msg("store keyword snapshot failed")
			continue
		}
		metrics.IngestedRecords.WithLabelValues(moduleName, "stored").Inc()
		result.Stored++
		if _, ok := byKeyword[snap.Keyword]; !ok {
			order = append(order, snap.Keyword)
		}
		byKeyword[snap.Keyword] = append(byKeyword[snap.Keyword], snap)
	}

	for _, keyword := range order {
		if err := s.store.UpsertMetric(ctx, Rollup(keyword, byKeyword[keyword])); err != nil {
			log.Error().Err(err).Str("keyword", keyword).Msg("store keyword rollup failed")
		}
	}

	result.Demo = s.store.Demo() || result.Synthetic
	metrics.RefreshRuns.WithLabelValues(moduleName, "ok").Inc()
	run.Complete(ctx, result.DataPoints, result.Stored, result.Demo)
	log.Info().Int("stored", result.Stored).Bool("synthetic", result.Synthetic).Msg("keyword update completed")
	return result, nil
}

func (s *Service) fetch(ctx context.Context) FetchResult {
	if s.primary != nil && s.primary.Initialized() && s.primary.Authenticate(ctx) {
		return s.primary.Fetch(ctx, s.keywords, s.days)
	}
	return s.synthetic.Fetch(ctx, s.keywords, s.days)
}

func (s *Service) sourceName(r FetchResult) string {
	if r.Synthetic {
		return s.synthetic.Name()
	}
	return s.primary.Name()
}

type TrendsResult struct {
	Trends        []Trend
	TotalKeywords int
	AlertCount    int
	Days          int
	Demo          bool
}

// Trends reads the last days of snapshots and evaluates alerts. days <= 0 means
// DefaultDays.
func (s *Service) Trends(ctx context.Context, days int) (TrendsResult, error) {
	if days <= 0 {
		days = DefaultDays
	}
	now := globaltime.UTC()
	snaps, err := s.store.ListSnapshotsSince(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		return TrendsResult{}, fmt.Errorf("list keyword snapshots: %w", err)
	}

	trends := BuildTrends(snaps, now, days)
	alerts := 0
	for _, t := range trends {
		if t.Alert {
			alerts++
		}
	}
	metrics.KeywordAlerts.Set(float64(alerts))

	return TrendsResult{
		Trends:        trends,
		TotalKeywords: len(trends),
		AlertCount:    alerts,
		Days:          days,
		Demo:          s.store.Demo(),
	}, nil
}

func (s *Service) Metrics(ctx context.Context) ([]store.KeywordMetric, error) {
	return s.store.ListMetrics(ctx)
}

type Status struct {
	GSCInitialized   bool
	GSCAuthenticated bool
	DemoMode         bool
	TargetKeywords   []string
}

func (s *Service) Status(ctx context.Context) Status {
	st := Status{DemoMode: s.store.Demo(), TargetKeywords: s.Keywords()}
	if s.primary != nil && s.primary.Initialized() {
		st.GSCInitialized = true
		st.GSCAuthenticated = s.primary.Authenticate(ctx)
	}
	return st
}

func (s *Service) Demo() bool {
	return s.store.Demo()
}

// dedupeSnapshots keeps the last sample for each keyword and day, in first-seen order.
func dedupeSnapshots(in []store.KeywordSnapshot) []store.KeywordSnapshot {
	type key struct {
		keyword string
		day     string
	}
	index := make(map[key]int, len(in))
	out := make([]store.KeywordSnapshot, 0, len(in))
	for _, snap := range in {
		k := key{keyword: snap.Keyword, day: globaltime.DateOf(snap.Date).Format(time.DateOnly)}
		if i, ok := index[k]; ok {
			out[i] = snap
			continue
		}
		index[k] = len(out)
		out = append(out, snap)
	}
	return out
}
