package app

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/store"
)

func TestRunDispatch(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
	}{
		{name: "no args", args: nil, want: 2},
		{name: "help", args: []string{"help"}, want: 0},
		{name: "help flag", args: []string{"--help"}, want: 0},
		{name: "unknown", args: []string{"deploy"}, want: 2},
		{name: "stats positional", args: []string{"stats", "extra"}, want: 2},
		{name: "articles bad limit", args: []string{"articles", "--limit", "0"}, want: 2},
		{name: "articles bad format", args: []string{"articles", "--format", "xml"}, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Run(tc.args); got != tc.want {
				t.Fatalf("Run(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestReadKey(t *testing.T) {
	t.Parallel()

	key, err := readKey(strings.NewReader("  opsdash-admin-key-1  \nignored\n"))
	if err != nil || key != "opsdash-admin-key-1" {
		t.Fatalf("got %q err %v", key, err)
	}
	if _, err := readKey(strings.NewReader("\n")); err == nil {
		t.Fatal("expected error for blank input")
	}
}

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("default: got %q err %v", got, err)
	}
	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("json: got %q err %v", got, err)
	}
	if _, err := parseOutputFormat("yaml", outputFormatTable); err == nil {
		t.Fatal("expected error for yaml")
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("  short  ", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncateForTable("Construction Site Accident", 10); got != "Constru..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateForTable("abcdef", 2); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestFilterArticles(t *testing.T) {
	t.Parallel()

	articles := store.DemoArticles(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	if got := filterArticles(articles, "", 2); len(got) != 2 {
		t.Fatalf("expected limit to cap at 2, got %d", len(got))
	}
	got := filterArticles(articles, " Construction ", 10)
	if len(got) != 1 || got[0].URL != "https://example.com/construction-accident" {
		t.Fatalf("unexpected tag filter result: %+v", got)
	}
}

func TestRenderArticlesTable(t *testing.T) {
	t.Parallel()

	articles := store.DemoArticles(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))[:1]
	articles[0].ID = 7
	articles[0].Fresh = true

	var out bytes.Buffer
	if err := renderArticles(&out, outputFormatTable, articles); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %q", out.String())
	}
	for _, want := range []string{"7", "crash", "Demo News", "2025-03-01T12:00:00Z", "yes"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row %q missing %q", lines[1], want)
		}
	}
}

func TestCollectAndRenderStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := store.NewMemory()
	if err := store.SeedDemo(ctx, mem); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	gw := store.NewGateway(nil, mem, zerolog.Nop())

	if err := gw.UpsertMetric(ctx, store.KeywordMetric{
		Keyword:     "personal injury lawyer",
		Clicks:      42,
		Impressions: 1200,
		Position:    8.4,
	}); err != nil {
		t.Fatalf("upsert metric: %v", err)
	}
	rank := 2
	if err := gw.UpsertRankLatest(ctx, store.RankLatest{Model: "OpenAI", Score: 4, Rank: &rank}); err != nil {
		t.Fatalf("upsert rank: %v", err)
	}
	if err := gw.UpsertRankLatest(ctx, store.RankLatest{Model: "Claude"}); err != nil {
		t.Fatalf("upsert rank: %v", err)
	}
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := gw.RecordRun(ctx, store.IngestRun{RunID: "run-1", Module: "news", Status: store.RunCompleted, Fetched: 3, Stored: 2, StartedAt: started, FinishedAt: started}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	report, err := collectStats(ctx, gw)
	if err != nil {
		t.Fatalf("collectStats failed: %v", err)
	}
	if report.Mode != store.ModeDemo || report.News.Total != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var table bytes.Buffer
	if err := renderStats(&table, outputFormatTable, report); err != nil {
		t.Fatalf("render table: %v", err)
	}
	text := table.String()
	for _, want := range []string{"mode: demo", "TOTAL", "personal injury lawyer", "8.4", "OpenAI", "Claude", "-", "2/3", "2025-03-01T12:00:00Z"} {
		if !strings.Contains(text, want) {
			t.Fatalf("table output missing %q:\n%s", want, text)
		}
	}

	var raw bytes.Buffer
	if err := renderStats(&raw, outputFormatJSON, report); err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw.Bytes(), &decoded); err != nil {
		t.Fatalf("stats json did not decode: %v", err)
	}
	if decoded["mode"] != "demo" {
		t.Fatalf("unexpected mode %v", decoded["mode"])
	}
}
