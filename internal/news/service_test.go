package news

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/reader"
	"northpointtriallaw.com/opsdash/internal/retry"
	"northpointtriallaw.com/opsdash/internal/store"
)

type memoryNewsStore struct {
	*store.Memory
	demo bool
}

func (m memoryNewsStore) Demo() bool { return m.demo }

type staticSource struct {
	name   string
	result FetchResult
}

func (s staticSource) Name() string                      { return s.name }
func (s staticSource) Fetch(context.Context) FetchResult { return s.result }

func TestRefreshMarksStaleAndUpserts(t *testing.T) {
	globaltime.SetMockTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	ctx := context.Background()
	mem := store.NewMemory()
	if err := store.SeedDemo(ctx, mem); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	src := staticSource{name: "eventRegistry", result: FetchResult{Articles: []RawArticle{
		{Title: "Construction worker injured", URL: "https://example.com/construction-accident", Summary: "Equipment failure.", PublishedAt: globaltime.UTC(), Source: "KQED"},
		{Title: "Recall issued for defective heaters", URL: "https://news.test/recall", Summary: "", PublishedAt: globaltime.UTC(), Source: "KQED"},
	}}}

	svc := NewService(memoryNewsStore{Memory: mem}, []Source{src}, reader.FetchOptions{}, zerolog.Nop())
	result, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.RunID == "" {
		t.Fatalf("expected run id")
	}
	if result.Counts.BySource["eventRegistry"] != 2 || result.Counts.Total != 2 || result.Counts.Stored != 2 || result.Counts.New != 1 {
		t.Fatalf("unexpected counts: %+v", result.Counts)
	}
	if result.Demo {
		t.Fatalf("expected demo=false for a connected store with real results")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Fresh != 2 {
		t.Fatalf("unexpected stats: total=%d fresh=%d", stats.Total, stats.Fresh)
	}
}

func TestRefreshSyntheticSurfacesDemo(t *testing.T) {
	mem := store.NewMemory()
	src := staticSource{name: "eventRegistry", result: FetchResult{Articles: DemoArticles(time.Now()), Synthetic: true}}
	svc := NewService(memoryNewsStore{Memory: mem}, []Source{src}, reader.FetchOptions{}, zerolog.Nop())

	result, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if !result.Demo || !result.Synthetic {
		t.Fatalf("expected synthetic demo result, got %+v", result)
	}
	if result.Counts.New != 3 {
		t.Fatalf("unexpected new count: got %d want 3", result.Counts.New)
	}
}

func TestPreviewUnknownArticle(t *testing.T) {
	svc := NewService(memoryNewsStore{Memory: store.NewMemory()}, nil, reader.FetchOptions{}, zerolog.Nop())
	if _, err := svc.Preview(context.Background(), 99, 0); err != store.ErrNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventRegistryWithoutKeyReturnsDemo(t *testing.T) {
	er := NewEventRegistry("", nil, retry.DefaultConfig(), zerolog.Nop())
	got := er.Fetch(context.Background())
	if !got.Synthetic || len(got.Articles) != 3 {
		t.Fatalf("expected 3 synthetic articles, got synthetic=%v n=%d", got.Synthetic, len(got.Articles))
	}
	if got.Articles[0].URL != "https://example.com/major-settlement-sf" {
		t.Fatalf("unexpected first demo url: %s", got.Articles[0].URL)
	}
}

func TestEventRegistryMapsResults(t *testing.T) {
	var captured eventRegistryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"articles":{"results":[
			{"title":"Crash on 101","url":"https://news.test/1","body":"Body text","summary":"ignored","dateTime":"2025-02-01T08:30:00Z","source":{"title":"SF Chronicle"}},
			{"title":"No url"},
			{"title":"Hospital case","url":"https://news.test/2","summary":"Summary only","date":"2025-02-02"}
		]}}`))
	}))
	defer srv.Close()

	er := NewEventRegistry("key-123", srv.Client(), retry.DefaultConfig(), zerolog.Nop(), WithEndpoint(srv.URL))
	got := er.Fetch(context.Background())
	if got.Synthetic {
		t.Fatalf("expected real results")
	}
	if len(got.Articles) != 2 {
		t.Fatalf("unexpected article count: got %d want 2", len(got.Articles))
	}
	if got.Articles[0].Summary != "Body text" || got.Articles[0].Source != "SF Chronicle" {
		t.Fatalf("unexpected first article: %+v", got.Articles[0])
	}
	if got.Articles[1].Summary != "Summary only" || got.Articles[1].Source != "Event Registry" {
		t.Fatalf("unexpected second article: %+v", got.Articles[1])
	}
	if captured.APIKey != "key-123" || captured.ArticlesCount != 50 || captured.Keyword != eventRegistryKeyword {
		t.Fatalf("unexpected request body: %+v", captured)
	}
}

func TestEventRegistryFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	er := NewEventRegistry("key", srv.Client(), retry.DefaultConfig(), zerolog.Nop(), WithEndpoint(srv.URL))
	got := er.Fetch(context.Background())
	if got.Synthetic || len(got.Articles) != 0 {
		t.Fatalf("expected empty non-synthetic result, got %+v", got)
	}
}

func TestEventRegistryEmptyResultsReturnsDemo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"articles":{"results":[]}}`))
	}))
	defer srv.Close()

	er := NewEventRegistry("key", srv.Client(), retry.DefaultConfig(), zerolog.Nop(), WithEndpoint(srv.URL))
	got := er.Fetch(context.Background())
	if !got.Synthetic || len(got.Articles) != 3 {
		t.Fatalf("expected synthetic demo articles, got %+v", got)
	}
}
