package keywords

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	searchConsoleName = "searchConsole"
	queryRowLimit     = 1000
)

type SearchConsoleConfig struct {
	// ServiceKey is base64-encoded service-account JSON. Raw JSON is accepted too.
	ServiceKey string
	SiteURL    string
	HTTPClient *http.Client
}

// SearchConsole queries Google Search Console search analytics with a
// service-account JWT scoped to webmasters.readonly.
type SearchConsole struct {
	siteURL string
	tokens  oauth2.TokenSource
	service *searchconsole.Service
	initErr error
	logger  zerolog.Logger
}

var _ AuthSource = (*SearchConsole)(nil)

// NewSearchConsole never fails. A missing or unusable key leaves the client
// uninitialized and Initialized reports false.
func NewSearchConsole(ctx context.Context, cfg SearchConsoleConfig, logger zerolog.Logger) *SearchConsole {
	sc := &SearchConsole{
		siteURL: cfg.SiteURL,
		logger:  logger.With().Str("source", searchConsoleName).Logger(),
	}

	if strings.TrimSpace(cfg.ServiceKey) == "" {
		sc.initErr = errors.New("GSC_SERVICE_KEY not configured")
		sc.logger.Warn().Msg("GSC_SERVICE_KEY not configured, keyword data will be synthetic")
		return sc
	}

	keyJSON, err := DecodeServiceKey(cfg.ServiceKey)
	if err != nil {
		sc.initErr = err
		sc.logger.Error().Err(err).Msg("invalid GSC service key")
		return sc
	}

	jwtCfg, err := google.JWTConfigFromJSON(keyJSON, searchconsole.WebmastersReadonlyScope)
	if err != nil {
		sc.initErr = fmt.Errorf("parse service account: %w", err)
		sc.logger.Error().Err(sc.initErr).Msg("invalid GSC service key")
		return sc
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	sc.tokens = oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(tokenCtx))

	authed := &http.Client{
		Timeout:   httpClient.Timeout,
		Transport: &oauth2.Transport{Source: sc.tokens, Base: httpClient.Transport},
	}
	svc, err := searchconsole.NewService(ctx, option.WithHTTPClient(authed))
	if err != nil {
		sc.initErr = fmt.Errorf("create search console service: %w", err)
		sc.tokens = nil
		sc.logger.Error().Err(sc.initErr).Msg("search console init failed")
		return sc
	}
	sc.service = svc
	sc.logger.Info().Str("client_email", jwtCfg.Email).Msg("search console client initialized")
	return sc
}

// newSearchConsoleWithService wires a prebuilt service without credentials.
func newSearchConsoleWithService(siteURL string, svc *searchconsole.Service, tokens oauth2.TokenSource, logger zerolog.Logger) *SearchConsole {
	return &SearchConsole{siteURL: siteURL, service: svc, tokens: tokens, logger: logger}
}

// DecodeServiceKey returns service-account JSON from a base64 or raw JSON value.
func DecodeServiceKey(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		if !json.Valid([]byte(trimmed)) {
			return nil, errors.New("service key is not valid JSON")
		}
		return []byte(trimmed), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64 service key: %w", err)
	}
	if !json.Valid(decoded) {
		return nil, errors.New("decoded service key is not valid JSON")
	}
	return decoded, nil
}

func (sc *SearchConsole) Name() string { return searchConsoleName }

func (sc *SearchConsole) Initialized() bool {
	return sc != nil && sc.service != nil
}

// InitError explains why the client is not initialized.
func (sc *SearchConsole) InitError() error {
	if sc == nil {
		return errors.New("search console not configured")
	}
	return sc.initErr
}

// Authenticate fetches an access token and reports whether it succeeded.
func (sc *SearchConsole) Authenticate(ctx context.Context) bool {
	if !sc.Initialized() {
		return false
	}
	if sc.tokens == nil {
		return true
	}
	if _, err := sc.tokens.Token(); err != nil {
		sc.logger.Error().Err(err).Msg("search console authentication failed")
		return false
	}
	return true
}

// Fetch runs one search analytics query per keyword. A failed query is logged and
// contributes no rows.
func (sc *SearchConsole) Fetch(ctx context.Context, keywords []string, days int) FetchResult {
	out := FetchResult{Snapshots: make([]store.KeywordSnapshot, 0, len(keywords)*days)}
	if !sc.Initialized() {
		return out
	}

	end := globaltime.Today()
	start := end.AddDate(0, 0, -days)

	for _, keyword := range keywords {
		req := &searchconsole.SearchAnalyticsQueryRequest{
			StartDate:  start.Format(time.DateOnly),
			EndDate:    end.Format(time.DateOnly),
			Dimensions: []string{"query", "date"},
			DimensionFilterGroups: []*searchconsole.ApiDimensionFilterGroup{{
				Filters: []*searchconsole.ApiDimensionFilter{{
					Dimension:  "query",
					Operator:   "equals",
					Expression: keyword,
				}},
			}},
			RowLimit: queryRowLimit,
		}

		resp, err := sc.service.Searchanalytics.Query(sc.siteURL, req).Context(ctx).Do()
		metrics.UpstreamCalls.WithLabelValues(searchConsoleName, metrics.Outcome(err)).Inc()
		if err != nil {
			sc.logger.Error().Err(err).Str("keyword", keyword).Msg("search analytics query failed")
			continue
		}

		for _, row := range resp.Rows {
			snap, ok := snapshotFromRow(row)
			if !ok {
				continue
			}
			out.Snapshots = append(out.Snapshots, snap)
		}
	}

	sc.logger.Info().Int("rows", len(out.Snapshots)).Int("keywords", len(keywords)).Msg("fetched search console data")
	return out
}

func snapshotFromRow(row *searchconsole.ApiDataRow) (store.KeywordSnapshot, bool) {
	if row == nil || len(row.Keys) < 2 {
		return store.KeywordSnapshot{}, false
	}
	date, err := time.Parse(time.DateOnly, row.Keys[1])
	if err != nil {
		return store.KeywordSnapshot{}, false
	}
	return store.KeywordSnapshot{
		Keyword:     row.Keys[0],
		Date:        date,
		Clicks:      int(row.Clicks),
		Impressions: int(row.Impressions),
		CTR:         row.Ctr,
		Position:    row.Position,
	}, true
}
