// Package health rolls the state of the database, the AI provider and Search
// Console into one report.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"northpointtriallaw.com/opsdash/internal/globaltime"
)

const (
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"

	OverallHealthy   = "healthy"
	OverallDegraded  = "degraded"
	OverallUnhealthy = "unhealthy"

	noLatency = "--"
)

type Service struct {
	Status     string `json:"status"`
	Latency    string `json:"latency"`
	StatusType string `json:"statusType"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Services struct {
	API           *Service `json:"api,omitempty"`
	Database      *Service `json:"database,omitempty"`
	AI            *Service `json:"ai,omitempty"`
	SearchConsole *Service `json:"searchConsole,omitempty"`
}

type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Services  Services  `json:"services"`
	Overall   string    `json:"overall"`
}

// Database is satisfied by *store.Gateway. Ping must not change the store mode.
type Database interface {
	Ping(ctx context.Context) error
	Demo() bool
}

// ModelLister is satisfied by OpenAIChecker.
type ModelLister interface {
	Configured() bool
	ListModels(ctx context.Context) error
}

type SearchConsole interface {
	Initialized() bool
	Authenticate(ctx context.Context) bool
}

type Checker struct {
	db          Database
	ai          ModelLister
	gsc         SearchConsole
	gscKeyIsSet bool
	logger      zerolog.Logger
}

// NewChecker builds a checker. gscKeyIsSet tells a broken key apart from a
// missing one.
func NewChecker(db Database, ai ModelLister, gsc SearchConsole, gscKeyIsSet bool, logger zerolog.Logger) *Checker {
	return &Checker{db: db, ai: ai, gsc: gsc, gscKeyIsSet: gscKeyIsSet, logger: logger}
}

// Check runs every probe in turn. A panic inside a probe is returned as an error
// together with the partial report marked unhealthy.
func (c *Checker) Check(ctx context.Context) (report Report, err error) {
	report = Report{Timestamp: globaltime.UTC(), Overall: OverallHealthy}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("health check failed")
			report.Overall = OverallUnhealthy
			err = fmt.Errorf("health check panic: %v", r)
		}
	}()

	start := globaltime.Now()
	report.Services.API = &Service{Status: "online", Latency: latency(start), StatusType: TypeSuccess}

	report.Services.Database = c.checkDatabase(ctx)
	report.Services.AI = c.checkAI(ctx)
	report.Services.SearchConsole = c.checkSearchConsole(ctx)

	for _, svc := range []*Service{report.Services.Database, report.Services.AI, report.Services.SearchConsole} {
		if degrades(svc) {
			report.Overall = OverallDegraded
		}
	}
	return report, nil
}

func (c *Checker) checkDatabase(ctx context.Context) *Service {
	start := globaltime.Now()
	if c.db == nil {
		return &Service{Status: "demo mode", Latency: latency(start), StatusType: TypeWarning}
	}
	if c.db.Demo() {
		return &Service{Status: "demo mode", Latency: latency(start), StatusType: TypeWarning}
	}
	if err := c.db.Ping(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("database ping failed")
		return &Service{Status: "error", Latency: latency(start), StatusType: TypeError, Error: err.Error()}
	}
	return &Service{Status: "connected", Latency: latency(start), StatusType: TypeSuccess}
}

func (c *Checker) checkAI(ctx context.Context) *Service {
	if c.ai == nil || !c.ai.Configured() {
		return &Service{Status: "not configured", Latency: noLatency, StatusType: TypeWarning}
	}
	start := globaltime.Now()
	if err := c.ai.ListModels(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("openai health probe failed")
		return &Service{Status: "error", Latency: latency(start), StatusType: TypeError}
	}
	return &Service{Status: "connected", Latency: latency(start), StatusType: TypeSuccess}
}

func (c *Checker) checkSearchConsole(ctx context.Context) *Service {
	start := globaltime.Now()
	if c.gsc != nil && c.gsc.Initialized() && c.gsc.Authenticate(ctx) {
		return &Service{Status: "connected", Latency: latency(start), StatusType: TypeSuccess}
	}
	if c.gscKeyIsSet {
		return &Service{Status: "auth failed", Latency: latency(start), StatusType: TypeError}
	}
	return &Service{
		Status:     "demo mode (not configured)",
		Latency:    noLatency,
		StatusType: TypeWarning,
		Message:    "GSC_SERVICE_KEY not configured",
	}
}

// degrades reports whether svc lowers the overall status. A missing Search
// Console key is expected in demo setups and does not.
func degrades(svc *Service) bool {
	if svc == nil {
		return false
	}
	switch svc.StatusType {
	case TypeError:
		return true
	case TypeWarning:
		return !strings.HasPrefix(svc.Status, "demo mode (")
	}
	return false
}

func latency(start time.Time) string {
	return fmt.Sprintf("%dms", globaltime.Since(start).Milliseconds())
}

// OpenAIChecker lists models to confirm the OpenAI key works.
type OpenAIChecker struct {
	client *openai.Client
}

// NewOpenAIChecker returns an unconfigured checker when apiKey is empty. baseURL
// may be empty.
func NewOpenAIChecker(apiKey, baseURL string, httpClient *http.Client) *OpenAIChecker {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &OpenAIChecker{}
	}
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChecker{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAIChecker) Configured() bool {
	return o != nil && o.client != nil
}

func (o *OpenAIChecker) ListModels(ctx context.Context) error {
	if !o.Configured() {
		return fmt.Errorf("OPENAI_API_KEY not configured")
	}
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list openai models: %w", err)
	}
	return nil
}
