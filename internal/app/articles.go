package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"northpointtriallaw.com/opsdash/internal/cli"
	"northpointtriallaw.com/opsdash/internal/store"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	tag := fs.String("tag", "", "Only show articles with this tag")
	limit := fs.Int("limit", 50, "Maximum articles to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
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

	articles, err := svc.news.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}
	articles = filterArticles(articles, *tag, *limit)

	if err := renderArticles(os.Stdout, outputFormat, articles); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render articles: %v\n", err)
		return 1
	}
	if svc.gateway.Demo() {
		fmt.Fprintln(os.Stderr, "note: database unavailable, showing demo data")
	}
	return 0
}

func filterArticles(in []store.Article, tag string, limit int) []store.Article {
	tag = strings.TrimSpace(strings.ToLower(tag))
	out := make([]store.Article, 0, min(len(in), limit))
	for _, a := range in {
		if tag != "" && a.Tag != tag {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}

func renderArticles(w io.Writer, format string, articles []store.Article) error {
	if format == outputFormatJSON {
		return printJSON(w, articles)
	}

	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		fresh := ""
		if a.Fresh {
			fresh = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", a.ID),
			truncateForTable(a.Title, 80),
			a.Tag,
			a.Source,
			formatUTCTimestamp(a.PublishedAt),
			fresh,
		})
	}
	return writeTable(w, []string{"id", "title", "tag", "source", "published_at", "fresh"}, rows)
}
