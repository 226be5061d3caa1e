package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/airank"
	"northpointtriallaw.com/opsdash/internal/cache"
	"northpointtriallaw.com/opsdash/internal/cli"
	"northpointtriallaw.com/opsdash/internal/config"
	"northpointtriallaw.com/opsdash/internal/db"
	"northpointtriallaw.com/opsdash/internal/health"
	"northpointtriallaw.com/opsdash/internal/httpapi"
	"northpointtriallaw.com/opsdash/internal/ingest"
	"northpointtriallaw.com/opsdash/internal/keywords"
	"northpointtriallaw.com/opsdash/internal/logging"
	"northpointtriallaw.com/opsdash/internal/news"
	"northpointtriallaw.com/opsdash/internal/reader"
	"northpointtriallaw.com/opsdash/internal/referral"
	"northpointtriallaw.com/opsdash/internal/retry"
	"northpointtriallaw.com/opsdash/internal/social"
	"northpointtriallaw.com/opsdash/internal/store"
	"northpointtriallaw.com/opsdash/internal/union"
)

const (
	dbConnectTimeout = 10 * time.Second
	newsCacheName    = "newsapi"
)

// loadRuntime loads the .env file, the environment config and the logger. ok is
// false when the command should exit 1; the failure has already been printed.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, bool) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), false
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), false
	}
	return cfg, logger, true
}

// services holds every domain service wired against one store gateway.
type services struct {
	gateway *store.Gateway
	memory  *store.Memory

	news     *news.Service
	keywords *keywords.Service
	airank   *airank.Service
	referral *referral.Service
	social   *social.Generator
	health   *health.Checker
	runs     *ingest.Recorder

	closers []func() error
}

// newServices connects the database and the optional Redis cache and builds the
// domain services. An unreachable database is not fatal: the gateway starts in
// demo mode on the seeded memory store.
func newServices(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*services, error) {
	mem := store.NewMemory()
	if err := store.SeedDemo(ctx, mem); err != nil {
		return nil, fmt.Errorf("seed demo store: %w", err)
	}

	out := &services{memory: mem}

	var primary store.Store
	dbCtx, dbCancel := context.WithTimeout(ctx, dbConnectTimeout)
	pool, err := db.NewPool(dbCtx, cfg)
	dbCancel()
	if err != nil {
		logger.Warn().Err(err).Msg("database unavailable, serving demo data from memory")
	} else {
		primary = store.NewPostgres(pool)
		out.closers = append(out.closers, pool.Close)
	}
	out.gateway = store.NewGateway(primary, mem, logger)

	var newsCache cache.JSON = cache.Nop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL, newsCacheName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, news lookups will not be cached")
		} else {
			newsCache = redisCache
			out.closers = append(out.closers, redisCache.Close)
		}
	}

	out.runs = ingest.NewRecorder(out.gateway, logger)

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	retryCfg := retry.WithAttempts(cfg.UpstreamRetryAttempts, logger.With().Str("component", "retry").Logger())

	openAIKey := config.APIKey(cfg.OpenAIAPIKey)
	gscKey := config.APIKey(cfg.GSCServiceKey)

	out.news = news.NewService(
		out.gateway,
		[]news.Source{news.NewEventRegistry(config.APIKey(cfg.EventRegistryAPIKey), httpClient, retryCfg, logger)},
		reader.FetchOptions{Timeout: cfg.UpstreamTimeout},
		logging.Component(logger, "news"),
	).WithRunLog(out.runs)

	gsc := keywords.NewSearchConsole(ctx, keywords.SearchConsoleConfig{
		ServiceKey: gscKey,
		SiteURL:    cfg.Tracking.SiteURL,
		HTTPClient: httpClient,
	}, logger)
	out.keywords = keywords.NewService(out.gateway, gsc, nil, cfg.Tracking.TargetKeywords, logging.Component(logger, "keywords")).
		WithRunLog(out.runs)

	providers := airank.DefaultProviders(airank.Keys{
		OpenAI:    openAIKey,
		Anthropic: config.APIKey(cfg.AnthropicAPIKey),
		Gemini:    config.APIKey(cfg.GeminiAPIKey),
		Cohere:    config.APIKey(cfg.CohereAPIKey),
	}, httpClient, retryCfg)
	out.airank = airank.NewService(out.gateway, providers, cfg.Tracking.RankingPrompt, cfg.Tracking.Brand, logging.Component(logger, "airank")).
		WithRunLog(out.runs)

	referralLogger := logging.Component(logger, "referral")
	searcher := referral.NewNewsAPI(referral.NewsAPIConfig{
		APIKey:     config.APIKey(cfg.NewsAPIKey),
		HTTPClient: httpClient,
		Retry:      retryCfg,
		Cache:      newsCache,
		CacheTTL:   cfg.NewsCacheTTL,
	}, referralLogger)
	writer := referral.NewOpenAIEmailWriter(openAIKey, "", httpClient, retryCfg, referralLogger)
	out.referral = referral.NewService(out.gateway, searcher, writer, referralLogger)

	out.social = social.NewGenerator(openAIKey, "", httpClient, logging.Component(logger, "social"))
	out.health = health.NewChecker(
		out.gateway,
		health.NewOpenAIChecker(openAIKey, "", httpClient),
		gsc,
		gscKey != "",
		logging.Component(logger, "health"),
	)

	return out, nil
}

func (s *services) httpServices() httpapi.Services {
	return httpapi.Services{
		News:     s.news,
		Keywords: s.keywords,
		AIRank:   s.airank,
		Referral: s.referral,
		Social:   s.social,
		Health:   s.health,
		Runs:     s.runs,
		Union:    union.NewBoard(),
		Memory:   s.memory,
	}
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}
