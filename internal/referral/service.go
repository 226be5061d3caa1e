package referral

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/store"
)

const moduleName = "referral"

type Store interface {
	store.ReferralStore
	Demo() bool
}

type Service struct {
	store  Store
	news   NewsSearcher
	writer EmailWriter
	logger zerolog.Logger
}

func NewService(st Store, searcher NewsSearcher, writer EmailWriter, logger zerolog.Logger) *Service {
	return &Service{store: st, news: searcher, writer: writer, logger: logger}
}

type ImportResult struct {
	Processed int
	Total     int
	Skipped   int
	IDs       []int64
	Demo      bool
}

// Import parses a CSV upload and upserts every valid row. A row that fails to
// store is logged and left out of Processed.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	parsed, err := ParseTargets(r)
	if err != nil {
		return ImportResult{}, err
	}
	if len(parsed.Targets) == 0 {
		return ImportResult{}, ErrNoTargets
	}

	result := ImportResult{Total: len(parsed.Targets), Skipped: parsed.Skipped, IDs: make([]int64, 0, len(parsed.Targets))}
	for _, target := range parsed.Targets {
		res, err := s.store.UpsertTarget(ctx, target)
		if err != nil {
			metrics.IngestedRecords.WithLabelValues(moduleName, "error").Inc()
			s.logger.Error().Err(err).Str("email", target.Email).Msg("store referral target failed")
			continue
		}
		metrics.IngestedRecords.WithLabelValues(moduleName, "stored").Inc()
		result.IDs = append(result.IDs, res.ID)
	}
	result.Processed = len(result.IDs)
	result.Demo = s.store.Demo()

	s.logger.Info().Int("processed", result.Processed).Int("skipped", result.Skipped).Msg("referral targets imported")
	return result, nil
}

type CheckResult struct {
	Checked         int
	EmailsGenerated int
	Errors          []string
	Demo            bool
}

// Check looks up coverage for every target and drafts one email per target from
// the first story found, falling back to a mock story when the search is empty.
func (s *Service) Check(ctx context.Context) (CheckResult, error) {
	targets, err := s.store.ListTargets(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("list referral targets: %w", err)
	}

	result := CheckResult{Errors: []string{}}
	for _, target := range targets {
		result.Checked++

		stories := s.news.Search(ctx, SearchQuery(target.FirstName, target.LastName))
		if len(stories) == 0 {
			s.logger.Debug().Str("email", target.Email).Msg("no coverage found, using mock story")
			stories = []Story{MockStory(target.FirstName, target.LastName, globaltime.UTC())}
		}

		email := s.writer.Draft(ctx, target.FirstName, stories[0].Title)
		if _, err := s.store.AddDraft(ctx, store.OutboxDraft{TargetID: target.ID, Subject: email.Subject, Body: email.Body}); err != nil {
			s.logger.Error().Err(err).Str("email", target.Email).Msg("store referral draft failed")
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing %s: %s", target.Email, err))
			continue
		}
		result.EmailsGenerated++
	}
	result.Demo = s.store.Demo()

	s.logger.Info().Int("checked", result.Checked).Int("emails", result.EmailsGenerated).Msg("referral check completed")
	return result, nil
}

func (s *Service) Outbox(ctx context.Context) ([]store.OutboxDraft, error) {
	return s.store.ListUnsentDrafts(ctx)
}

// MarkSent returns store.ErrNotFound for an unknown draft.
func (s *Service) MarkSent(ctx context.Context, id int64) error {
	return s.store.MarkDraftSent(ctx, id)
}

func (s *Service) Demo() bool {
	return s.store.Demo()
}
