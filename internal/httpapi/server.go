package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/airank"
	"northpointtriallaw.com/opsdash/internal/auth"
	"northpointtriallaw.com/opsdash/internal/health"
	"northpointtriallaw.com/opsdash/internal/ingest"
	"northpointtriallaw.com/opsdash/internal/keywords"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/news"
	"northpointtriallaw.com/opsdash/internal/referral"
	"northpointtriallaw.com/opsdash/internal/social"
	"northpointtriallaw.com/opsdash/internal/store"
	"northpointtriallaw.com/opsdash/internal/union"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
	// AdminKeyHash is a bcrypt hash; when set the mutating routes require the key.
	AdminKeyHash string
}

// Services are the domain handlers the routes call into. Memory backs the
// in-memory counters reported by the /test routes while in demo mode.
type Services struct {
	News     *news.Service
	Keywords *keywords.Service
	AIRank   *airank.Service
	Referral *referral.Service
	Social   *social.Generator
	Health   *health.Checker
	Runs     *ingest.Recorder
	Union    *union.Board
	Memory   *store.Memory
}

type Server struct {
	svc    Services
	logger zerolog.Logger
	opts   Options
}

func NewServer(svc Services, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 3002
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		// AI ranking queries four providers in sequence.
		writeTimeout = 3 * time.Minute
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	if svc.Memory == nil {
		svc.Memory = store.NewMemory()
	}
	if svc.Union == nil {
		svc.Union = union.NewBoard()
	}
	if svc.Runs == nil {
		svc.Runs = ingest.NewRecorder(svc.Memory, logger)
	}

	return &Server{
		svc:    svc,
		logger: logger.With().Str("component", "http").Logger(),
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowOrigins:    origins,
			AdminKeyHash:    strings.TrimSpace(opts.AdminKeyHash),
		},
	}
}

// Handler builds the echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", auth.HeaderAdminKey},
		MaxAge:       3600,
	}))
	e.Use(requestMetrics)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/", s.handleRoot)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.POST("/social/generate", s.handleSocialGenerate)

	admin := s.requireAdminKey()

	newsGroup := e.Group("/news")
	newsGroup.GET("/all", s.handleNewsAll)
	newsGroup.POST("/refresh", s.handleNewsRefresh, admin)
	newsGroup.GET("/stats", s.handleNewsStats)
	newsGroup.GET("/test", s.handleNewsTest)
	newsGroup.GET("/:id/preview", s.handleNewsPreview)

	keywordGroup := e.Group("/keywords")
	keywordGroup.POST("/update", s.handleKeywordsUpdate, admin)
	keywordGroup.GET("/trends", s.handleKeywordsTrends)
	keywordGroup.GET("/status", s.handleKeywordsStatus)
	keywordGroup.GET("/metrics", s.handleKeywordsMetrics)
	keywordGroup.GET("/test", s.handleKeywordsTest)

	aiGroup := e.Group("/ai")
	aiGroup.POST("/rank", s.handleAIRank, admin)
	aiGroup.GET("/history", s.handleAIHistory)
	aiGroup.GET("/latest", s.handleAILatest)
	aiGroup.GET("/test", s.handleAITest)

	referralGroup := e.Group("/referral")
	referralGroup.POST("/upload", s.handleReferralUpload, admin, uploadTooLarge, middleware.BodyLimit(uploadBodyLimit))
	referralGroup.POST("/check", s.handleReferralCheck, admin)
	referralGroup.GET("/outbox", s.handleReferralOutbox)
	referralGroup.PATCH("/outbox/:id/sent", s.handleReferralMarkSent, admin)
	referralGroup.GET("/test", s.handleReferralTest)

	healthGroup := e.Group("/health")
	healthGroup.GET("/status", s.handleHealthStatus)
	healthGroup.GET("/ping", s.handleHealthPing)

	e.GET("/ingest/runs", s.handleIngestRuns)

	unionGroup := e.Group("/union")
	unionGroup.GET("/campaigns", s.handleUnionCampaigns)
	unionGroup.GET("/stats", s.handleUnionStats)
	unionGroup.GET("/activity", s.handleUnionActivity)
	unionGroup.GET("/dashboard", s.handleUnionDashboard)
	unionGroup.POST("/join-campaign", s.handleUnionJoin)
	unionGroup.GET("/test", s.handleUnionTest)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.svc.News == nil || s.svc.Keywords == nil || s.svc.AIRank == nil ||
		s.svc.Referral == nil || s.svc.Social == nil || s.svc.Health == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("opsdash api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("opsdash api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled request error")
		_ = internalError(c, "Internal server error", err)
		return
	}
	_ = fail(c, status, message)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"message": "API server is running!"})
}
