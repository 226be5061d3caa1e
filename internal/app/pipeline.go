package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/cli"
)

// cycleFunc runs one refresh cycle and returns the line printed on success.
type cycleFunc func(ctx context.Context, svc *services, logger zerolog.Logger) (string, error)

func runRefreshNews(args []string) int {
	return runCycle("refresh-news", 2*time.Minute, args, func(ctx context.Context, svc *services, logger zerolog.Logger) (string, error) {
		result, err := svc.news.Refresh(ctx)
		if err != nil {
			return "", err
		}
		logger.Info().
			Str("run_id", result.RunID).
			Int("fetched", result.Counts.Total).
			Int("stored", result.Counts.Stored).
			Msg("news refresh command completed")
		return fmt.Sprintf(
			"refresh-news run_id=%s fetched=%d stored=%d new=%d rejected=%d demo=%t",
			result.RunID,
			result.Counts.Total,
			result.Counts.Stored,
			result.Counts.New,
			result.Counts.Rejected,
			result.Demo,
		), nil
	})
}

func runUpdateKeywords(args []string) int {
	return runCycle("update-keywords", 2*time.Minute, args, func(ctx context.Context, svc *services, logger zerolog.Logger) (string, error) {
		result, err := svc.keywords.Update(ctx)
		if err != nil {
			return "", err
		}
		logger.Info().
			Str("run_id", result.RunID).
			Int("data_points", result.DataPoints).
			Int("stored", result.Stored).
			Msg("keyword update command completed")
		return fmt.Sprintf(
			"update-keywords run_id=%s keywords=%d data_points=%d stored=%d synthetic=%t demo=%t",
			result.RunID,
			len(result.Keywords),
			result.DataPoints,
			result.Stored,
			result.Synthetic,
			result.Demo,
		), nil
	})
}

func runRank(args []string) int {
	return runCycle("rank", 5*time.Minute, args, func(ctx context.Context, svc *services, logger zerolog.Logger) (string, error) {
		result, err := svc.airank.Rank(ctx)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("rank run_id=%s demo=%t", result.RunID, result.Demo)
		for _, r := range result.Results {
			rank := "-"
			if r.Rank != nil {
				rank = fmt.Sprint(*r.Rank)
			}
			line += fmt.Sprintf("\n  %-8s score=%d rank=%s", r.Model, r.Score, rank)
		}
		logger.Info().Str("run_id", result.RunID).Int("models", len(result.Results)).Msg("ai rank command completed")
		return line, nil
	})
}

func runCycle(name string, defaultTimeout time.Duration, args []string, run cycleFunc) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", defaultTimeout, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
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
		logger.Error().Err(err).Str("command", name).Msg("failed to initialize services")
		fmt.Fprintf(os.Stderr, "Failed to initialize services: %v\n", err)
		return 1
	}
	defer svc.Close()

	line, err := run(ctx, svc, logger)
	if err != nil {
		logger.Error().Err(err).Str("command", name).Msg("command failed")
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		return 1
	}
	fmt.Println(line)
	return 0
}
