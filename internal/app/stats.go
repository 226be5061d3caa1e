package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"northpointtriallaw.com/opsdash/internal/cli"
	"northpointtriallaw.com/opsdash/internal/store"
)

type statsReport struct {
	Mode     store.Mode            `json:"mode"`
	News     store.NewsStats       `json:"news"`
	Keywords []store.KeywordMetric `json:"keywords"`
	Ranks    []store.RankLatest    `json:"ranks"`
	Runs     []store.IngestRun     `json:"runs"`
}

const statsRunLimit = 5

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize services: %v\n", err)
		return 1
	}
	defer svc.Close()

	report, err := collectStats(ctx, svc.gateway)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}
	if err := renderStats(os.Stdout, outputFormat, report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats: %v\n", err)
		return 1
	}
	return 0
}

func collectStats(ctx context.Context, gw *store.Gateway) (statsReport, error) {
	news, err := gw.NewsStats(ctx)
	if err != nil {
		return statsReport{}, fmt.Errorf("news stats: %w", err)
	}
	kws, err := gw.ListMetrics(ctx)
	if err != nil {
		return statsReport{}, fmt.Errorf("keyword metrics: %w", err)
	}
	ranks, err := gw.ListRankLatest(ctx)
	if err != nil {
		return statsReport{}, fmt.Errorf("latest ranks: %w", err)
	}
	runs, err := gw.ListRuns(ctx, "", statsRunLimit)
	if err != nil {
		return statsReport{}, fmt.Errorf("ingest runs: %w", err)
	}
	// Read after the queries so a mid-command fallback is reported.
	return statsReport{Mode: gw.Mode(), News: news, Keywords: kws, Ranks: ranks, Runs: runs}, nil
}

func renderStats(w io.Writer, format string, report statsReport) error {
	if format == outputFormatJSON {
		return printJSON(w, report)
	}

	fmt.Fprintf(w, "mode: %s\n\n", report.Mode)

	tagRows := make([][]string, 0, len(report.News.ByTag)+1)
	for _, tc := range report.News.ByTag {
		tagRows = append(tagRows, []string{tc.Tag, fmt.Sprintf("%d", tc.Count)})
	}
	tagRows = append(tagRows, []string{"TOTAL", fmt.Sprintf("%d (%d fresh)", report.News.Total, report.News.Fresh)})
	if err := writeTable(w, []string{"tag", "articles"}, tagRows); err != nil {
		return err
	}

	fmt.Fprintln(w)
	kwRows := make([][]string, 0, len(report.Keywords))
	for _, m := range report.Keywords {
		kwRows = append(kwRows, []string{
			m.Keyword,
			fmt.Sprintf("%d", m.Clicks),
			fmt.Sprintf("%d", m.Impressions),
			fmt.Sprintf("%.1f", m.Position),
		})
	}
	if err := writeTable(w, []string{"keyword", "clicks", "impressions", "position"}, kwRows); err != nil {
		return err
	}

	fmt.Fprintln(w)
	rankRows := make([][]string, 0, len(report.Ranks))
	for _, r := range report.Ranks {
		rankRows = append(rankRows, []string{r.Model, fmt.Sprintf("%d", r.Score), formatRank(r.Rank)})
	}
	if err := writeTable(w, []string{"model", "score", "rank"}, rankRows); err != nil {
		return err
	}

	if len(report.Runs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	runRows := make([][]string, 0, len(report.Runs))
	for _, r := range report.Runs {
		runRows = append(runRows, []string{
			r.Module,
			r.Status,
			fmt.Sprintf("%d/%d", r.Stored, r.Fetched),
			formatUTCTimestamp(r.StartedAt),
			truncateForTable(r.Error, 60),
		})
	}
	return writeTable(w, []string{"module", "status", "stored", "started_at", "error"}, runRows)
}
