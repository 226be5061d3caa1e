package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"northpointtriallaw.com/opsdash/internal/cli"
	"northpointtriallaw.com/opsdash/internal/db"
	"northpointtriallaw.com/opsdash/internal/store"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		fmt.Printf("mode=%s\n", store.ModeDemo)
		return 1
	}
	defer pool.Close()

	gw := store.NewGateway(store.NewPostgres(pool), nil, logger)
	if err := gw.Probe(ctx); err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		fmt.Printf("mode=%s\n", gw.Mode())
		return 1
	}

	logger.Info().
		Dur("timeout", *timeout).
		Msg("database health check passed")
	fmt.Printf("ok: database ping successful mode=%s\n", gw.Mode())
	return 0
}
