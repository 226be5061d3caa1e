package airank

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/store"
)

type memoryRankStore struct {
	*store.Memory
	demo bool
}

func (m memoryRankStore) Demo() bool { return m.demo }

type staticProvider struct {
	name   string
	answer string
	err    error
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) Query(context.Context, string) (string, error) {
	return p.answer, p.err
}

func TestRankScoresEveryProvider(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	svc := NewService(memoryRankStore{Memory: mem, demo: true}, []Provider{
		staticProvider{name: ModelOpenAI, answer: "1. Alpha Law\n2. Northpoint Trial Law\n3. Beta Law"},
		staticProvider{name: ModelClaude, err: errors.New("ANTHROPIC_API_KEY not configured")},
		staticProvider{name: ModelGemini, answer: "- Northpoint Trial Law - SF"},
		staticProvider{name: ModelCohere, answer: "I can't help with that."},
	}, "who?", "northpoint", zerolog.Nop())

	run, err := svc.Rank(context.Background())
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !run.Demo || run.RunID == "" || run.Timestamp.IsZero() {
		t.Fatalf("unexpected run metadata: %+v", run)
	}

	want := []struct {
		model string
		score int
		rank  int
	}{
		{ModelOpenAI, 4, 2},
		{ModelClaude, 0, 0},
		{ModelGemini, 5, 1},
		{ModelCohere, 0, 0},
	}
	if len(run.Results) != len(want) {
		t.Fatalf("unexpected result count: got %d want %d", len(run.Results), len(want))
	}
	for i, w := range want {
		got := run.Results[i]
		if got.Model != w.model || got.Score != w.score {
			t.Fatalf("result %d: got %+v want %+v", i, got, w)
		}
		if w.rank == 0 && got.Rank != nil {
			t.Fatalf("result %d: expected nil rank, got %d", i, *got.Rank)
		}
		if w.rank != 0 && (got.Rank == nil || *got.Rank != w.rank) {
			t.Fatalf("result %d: unexpected rank %v want %d", i, got.Rank, w.rank)
		}
	}

	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 || history[0].Model != ModelCohere {
		t.Fatalf("unexpected history: %+v", history)
	}

	latest, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 4 {
		t.Fatalf("unexpected latest count: got %d want 4", len(latest))
	}
}

func TestRankUpsertsLatestPerModel(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	provider := &staticProvider{name: ModelOpenAI, answer: "1. Northpoint"}
	svc := NewService(memoryRankStore{Memory: mem}, []Provider{provider}, "who?", "northpoint", zerolog.Nop())

	if _, err := svc.Rank(context.Background()); err != nil {
		t.Fatalf("first rank: %v", err)
	}
	provider.answer = "nothing useful"
	if _, err := svc.Rank(context.Background()); err != nil {
		t.Fatalf("second rank: %v", err)
	}

	latest, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 1 || latest[0].Score != 0 || latest[0].Rank != nil || !latest[0].Fresh {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	count, err := mem.CountRankHistory(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("unexpected history count: got %d want 2", count)
	}
}
