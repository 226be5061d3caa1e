package airank

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

const (
	moduleName   = "airank"
	HistoryLimit = 20
)

type Store interface {
	store.RankStore
	Demo() bool
}

type Service struct {
	store     Store
	providers []Provider
	prompt    string
	brand     string
	runs      *ingest.Recorder
	logger    zerolog.Logger
}

func NewService(st Store, providers []Provider, prompt, brand string, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		providers: providers,
		prompt:    prompt,
		brand:     brand,
		logger:    logger,
	}
}

// WithRunLog records every ranking pass in runs.
func (s *Service) WithRunLog(runs *ingest.Recorder) *Service {
	s.runs = runs
	return s
}

type Result struct {
	Model string `json:"model"`
	Score int    `json:"score"`
	Rank  *int   `json:"rank"`
}

type RunResult struct {
	RunID     string
	Results   []Result
	Timestamp time.Time
	Demo      bool
}

// Rank queries every provider in order. A provider failure scores 0 with no rank
// and is stored like any other result.
func (s *Service) Rank(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()
	run := RunResult{RunID: runID, Timestamp: globaltime.UTC(), Results: make([]Result, 0, len(s.providers))}
	logged := s.runs.Start(moduleName, runID)
	fail := func(err error) (RunResult, error) {
		metrics.RefreshRuns.WithLabelValues(moduleName, "error").Inc()
		logged.Fail(ctx, err)
		return RunResult{}, err
	}

	if err := s.store.MarkRanksStale(ctx); err != nil {
		return fail(fmt.Errorf("mark ranks stale: %w", err))
	}

	for _, provider := range s.providers {
		result := s.rankOne(ctx, log, provider)

		if _, err := s.store.AppendRankScore(ctx, store.RankScore{Model: result.Model, Score: result.Score, Rank: result.Rank}); err != nil {
			return fail(fmt.Errorf("store %s rank: %w", result.Model, err))
		}
		if err := s.store.UpsertRankLatest(ctx, store.RankLatest{Model: result.Model, Score: result.Score, Rank: result.Rank}); err != nil {
			return fail(fmt.Errorf("store %s latest rank: %w", result.Model, err))
		}
		metrics.IngestedRecords.WithLabelValues(moduleName, "stored").Inc()
		run.Results = append(run.Results, result)
	}

	run.Demo = s.store.Demo()
	metrics.RefreshRuns.WithLabelValues(moduleName, "ok").Inc()
	logged.Complete(ctx, len(s.providers), len(run.Results), run.Demo)
	log.Info().Int("models", len(run.Results)).Msg("ai ranking completed")
	return run, nil
}

func (s *Service) rankOne(ctx context.Context, log zerolog.Logger, provider Provider) Result {
	name := provider.Name()
	log.Debug().Str("model", name).Msg("querying model")

	answer, err := provider.Query(ctx, s.prompt)
	metrics.UpstreamCalls.WithLabelValues(name, metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("model", name).Msg("model query failed")
		return Result{Model: name}
	}

	names := ParseTopLawyers(answer)
	score, rank := ScoreBrand(names, s.brand)
	log.Info().Str("model", name).Strs("lawyers", names).Int("score", score).Msg("model ranked")
	return Result{Model: name, Score: score, Rank: rank}
}

// History returns the most recent HistoryLimit scores, newest first.
func (s *Service) History(ctx context.Context) ([]store.RankScore, error) {
	return s.store.ListRankHistory(ctx, HistoryLimit)
}

func (s *Service) Latest(ctx context.Context) ([]store.RankLatest, error) {
	return s.store.ListRankLatest(ctx)
}

func (s *Service) Demo() bool {
	return s.store.Demo()
}
