package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"northpointtriallaw.com/opsdash/internal/cli"
	"northpointtriallaw.com/opsdash/internal/httpapi"
	"northpointtriallaw.com/opsdash/internal/metrics"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 0, "HTTP port (defaults to PORT, then 3002)")
	readTimeout := fs.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 3*time.Minute, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}
	if *port == 0 {
		*port = cfg.Port
	}

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to initialize services")
		fmt.Fprintf(os.Stderr, "Failed to initialize services: %v\n", err)
		return 1
	}
	defer svc.Close()

	logger.Info().
		Str("mode", string(svc.gateway.Mode())).
		Strs("target_keywords", cfg.Tracking.TargetKeywords).
		Str("brand", cfg.Tracking.Brand).
		Msg("services initialized")

	srv := httpapi.NewServer(svc.httpServices(), logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowOrigins:    cfg.CORSAllowedOriginsList(),
		AdminKeyHash:    cfg.AdminKeyHash,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
