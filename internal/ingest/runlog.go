// Package ingest keeps the run log of the refresh pipelines: one row per news
// refresh, keyword update or AI ranking pass.
package ingest

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	maxRunErrorLength = 4000
	DefaultListLimit  = 20
)

type Store interface {
	RecordRun(ctx context.Context, r store.IngestRun) (int64, error)
	ListRuns(ctx context.Context, module string, limit int) ([]store.IngestRun, error)
}

type Recorder struct {
	store  Store
	logger zerolog.Logger
}

func NewRecorder(st Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  st,
		logger: logger.With().Str("component", "runlog").Logger(),
	}
}

// Run tracks one pass between Start and Complete or Fail. A nil Run, as
// returned by a nil Recorder, records nothing.
type Run struct {
	rec       *Recorder
	module    string
	id        string
	startedAt time.Time
}

func (r *Recorder) Start(module, runID string) *Run {
	if r == nil || r.store == nil {
		return nil
	}
	return &Run{rec: r, module: module, id: runID, startedAt: globaltime.UTC()}
}

func (run *Run) Complete(ctx context.Context, fetched, stored int, demo bool) {
	if run == nil {
		return
	}
	run.record(ctx, store.IngestRun{
		Status:  store.RunCompleted,
		Fetched: fetched,
		Stored:  stored,
		Demo:    demo,
	})
}

func (run *Run) Fail(ctx context.Context, cause error) {
	if run == nil {
		return
	}
	msg := "unknown error"
	if cause != nil {
		msg = strings.TrimSpace(cause.Error())
	}
	msg = truncateUTF8(strings.ReplaceAll(strings.ToValidUTF8(msg, ""), "\x00", ""), maxRunErrorLength)
	run.record(ctx, store.IngestRun{Status: store.RunFailed, Error: msg})
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// record never fails the pipeline; a lost run row is only logged.
func (run *Run) record(ctx context.Context, r store.IngestRun) {
	r.RunID = run.id
	r.Module = run.module
	r.StartedAt = run.startedAt
	r.FinishedAt = globaltime.UTC()

	if _, err := run.rec.store.RecordRun(context.WithoutCancel(ctx), r); err != nil {
		run.rec.logger.Warn().
			Err(err).
			Str("run_id", r.RunID).
			Str("module", r.Module).
			Msg("record ingest run failed")
	}
}

// Recent lists the newest runs, optionally for a single module. limit <= 0
// means DefaultListLimit.
func (r *Recorder) Recent(ctx context.Context, module string, limit int) ([]store.IngestRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return r.store.ListRuns(ctx, strings.TrimSpace(module), limit)
}
