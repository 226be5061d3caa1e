// Package news refreshes personal-injury news from upstream sources into the store
// and serves it back to the dashboard.
package news

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/ingest"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/reader"
	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	ListLimit  = 200
	moduleName = "news"
)

// Store is the persistence the service needs. store.Gateway satisfies it.
type Store interface {
	store.NewsStore
	Demo() bool
}

type Service struct {
	store   Store
	sources []Source
	preview reader.FetchOptions
	runs    *ingest.Recorder
	logger  zerolog.Logger
}

func NewService(st Store, sources []Source, preview reader.FetchOptions, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		sources: sources,
		preview: preview,
		logger:  logger,
	}
}

// WithRunLog records every refresh pass in runs.
func (s *Service) WithRunLog(runs *ingest.Recorder) *Service {
	s.runs = runs
	return s
}

type RefreshCounts struct {
	BySource map[string]int
	Total    int
	Stored   int
	New      int
	Rejected int
}

type RefreshResult struct {
	RunID     string
	Counts    RefreshCounts
	Synthetic bool
	Demo      bool
}

// Refresh marks every article stale, pulls all sources in order and upserts the
// normalized batch. Articles the batch does not mention stay stale.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()
	log.Info().Msg("starting news refresh")
	run := s.runs.Start(moduleName, runID)

	if err := s.store.MarkNewsStale(ctx); err != nil {
		metrics.RefreshRuns.WithLabelValues(moduleName, "error").Inc()
		err = fmt.Errorf("mark news stale: %w", err)
		run.Fail(ctx, err)
		return RefreshResult{}, err
	}

	result := RefreshResult{RunID: runID, Counts: RefreshCounts{BySource: make(map[string]int, len(s.sources))}}
	raw := make([]RawArticle, 0, 64)
	for _, src := range s.sources {
		fetched := src.Fetch(ctx)
		result.Counts.BySource[src.Name()] = len(fetched.Articles)
		result.Synthetic = result.Synthetic || fetched.Synthetic
		raw = append(raw, fetched.Articles...)
	}
	result.Counts.Total = len(raw)

	normalized := Normalize(raw)
	result.Counts.Rejected = len(normalized.Rejected)
	for _, r := range normalized.Rejected {
		log.Warn().Str("url", r.URL).Str("reason", r.Reason).Msg("dropping invalid article")
	}
	metrics.IngestedRecords.WithLabelValues(moduleName, "rejected").Add(float64(len(normalized.Rejected)))

	for _, article := range normalized.Articles {
		res, err := s.store.UpsertArticle(ctx, article)
		if err != nil {
			metrics.IngestedRecords.WithLabelValues(moduleName, "error").Inc()
			log.Error().Err(err).Str("url", article.URL).Msg("store article failed")
			continue
		}
		result.Counts.Stored++
		if res.Inserted {
			result.Counts.New++
			metrics.IngestedRecords.WithLabelValues(moduleName, "inserted").Inc()
		} else {
			metrics.IngestedRecords.WithLabelValues(moduleName, "updated").Inc()
		}
	}

	result.Demo = s.store.Demo() || result.Synthetic
	metrics.RefreshRuns.WithLabelValues(moduleName, "ok").Inc()
	run.Complete(ctx, result.Counts.Total, result.Counts.Stored, result.Demo)
	log.Info().
		Int("fetched", result.Counts.Total).
		Int("stored", result.Counts.Stored).
		Int("new", result.Counts.New).
		Int("duplicates", normalized.Duplicates).
		Bool("synthetic", result.Synthetic).
		Msg("news refresh completed")
	return result, nil
}

func (s *Service) List(ctx context.Context) ([]store.Article, error) {
	return s.store.ListArticles(ctx, ListLimit)
}

func (s *Service) Stats(ctx context.Context) (store.NewsStats, error) {
	return s.store.NewsStats(ctx)
}

func (s *Service) Demo() bool {
	return s.store.Demo()
}

type ArticlePreview struct {
	Article store.Article  `json:"article"`
	Preview reader.Preview `json:"preview"`
}

// Preview loads a stored article and extracts readable text from its URL.
// It returns store.ErrNotFound for unknown ids.
func (s *Service) Preview(ctx context.Context, id int64, maxChars int) (ArticlePreview, error) {
	article, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return ArticlePreview{}, err
	}
	return ArticlePreview{
		Article: article,
		Preview: reader.BuildPreview(ctx, article.URL, article.Title, article.Summary, maxChars, s.preview),
	}, nil
}
