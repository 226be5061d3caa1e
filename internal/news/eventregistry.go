package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/retry"
)

const (
	EventRegistryEndpoint = "https://eventregistry.org/api/v1/article/getArticles"
	EventRegistryName     = "eventRegistry"

	eventRegistryKeyword = "accident OR crash OR malpractice"
	eventRegistryConcept = "http://en.wikipedia.org/wiki/San_Francisco_Bay_Area"
	eventRegistryCount   = 50
	maxErrorBodyBytes    = 4096
)

type EventRegistry struct {
	apiKey   string
	endpoint string
	client   *http.Client
	retry    retry.Config
	logger   zerolog.Logger
}

type EventRegistryOption func(*EventRegistry)

// WithEndpoint points the adapter at a different URL. Tests use it.
func WithEndpoint(endpoint string) EventRegistryOption {
	return func(e *EventRegistry) { e.endpoint = endpoint }
}

func NewEventRegistry(apiKey string, client *http.Client, retryCfg retry.Config, logger zerolog.Logger, opts ...EventRegistryOption) *EventRegistry {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	e := &EventRegistry{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: EventRegistryEndpoint,
		client:   client,
		retry:    retryCfg,
		logger:   logger.With().Str("source", EventRegistryName).Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *EventRegistry) Name() string { return EventRegistryName }

type eventRegistryRequest struct {
	Action                           string `json:"action"`
	Keyword                          string `json:"keyword"`
	ConceptURI                       string `json:"conceptUri"`
	Lang                             string `json:"lang"`
	ArticlesCount                    int    `json:"articlesCount"`
	ArticlesSortBy                   string `json:"articlesSortBy"`
	ArticlesIncludeArticleImage      bool   `json:"articlesIncludeArticleImage"`
	ArticlesIncludeArticleCategories bool   `json:"articlesIncludeArticleCategories"`
	ResultType                       string `json:"resultType"`
	APIKey                           string `json:"apiKey"`
}

type eventRegistryResponse struct {
	Articles *struct {
		Results []eventRegistryArticle `json:"results"`
	} `json:"articles"`
	Error json.RawMessage `json:"error"`
}

type eventRegistryArticle struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Body     string `json:"body"`
	Summary  string `json:"summary"`
	Image    string `json:"image"`
	Lang     string `json:"lang"`
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	Source   *struct {
		Title string `json:"title"`
	} `json:"source"`
}

// Fetch returns demo articles when the key is missing or the search is empty, and
// no articles when the request fails.
func (e *EventRegistry) Fetch(ctx context.Context) FetchResult {
	now := globaltime.UTC()
	if e.apiKey == "" {
		e.logger.Warn().Msg("EVENT_REGISTRY_API_KEY not configured, returning demo articles")
		metrics.UpstreamCalls.WithLabelValues(EventRegistryName, "skipped").Inc()
		return FetchResult{Articles: DemoArticles(now), Synthetic: true}
	}

	payload, err := retry.DoWithResult(ctx, e.retry, func() (*eventRegistryResponse, error) {
		return e.post(ctx)
	})
	metrics.UpstreamCalls.WithLabelValues(EventRegistryName, metrics.Outcome(err)).Inc()
	if err != nil {
		e.logger.Error().Err(err).Msg("event registry request failed")
		return FetchResult{Articles: []RawArticle{}}
	}

	if payload.Articles == nil {
		if len(payload.Error) > 0 {
			e.logger.Error().RawJSON("upstream_error", payload.Error).Msg("event registry returned an error")
		}
		payload.Articles = &struct {
			Results []eventRegistryArticle `json:"results"`
		}{}
	}

	articles := make([]RawArticle, 0, len(payload.Articles.Results))
	for _, item := range payload.Articles.Results {
		if strings.TrimSpace(item.URL) == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		articles = append(articles, mapEventRegistryArticle(item, now))
	}

	e.logger.Info().Int("articles", len(articles)).Msg("fetched event registry articles")
	if len(articles) == 0 {
		e.logger.Info().Msg("no articles from event registry, returning demo articles")
		return FetchResult{Articles: DemoArticles(now), Synthetic: true}
	}
	return FetchResult{Articles: articles}
}

func (e *EventRegistry) post(ctx context.Context) (*eventRegistryResponse, error) {
	body, err := json.Marshal(eventRegistryRequest{
		Action:                           "getArticles",
		Keyword:                          eventRegistryKeyword,
		ConceptURI:                       eventRegistryConcept,
		Lang:                             "eng",
		ArticlesCount:                    eventRegistryCount,
		ArticlesSortBy:                   "date",
		ArticlesIncludeArticleImage:      true,
		ArticlesIncludeArticleCategories: true,
		ResultType:                       "articles",
		APIKey:                           e.apiKey,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post event registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := fmt.Errorf("event registry status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var payload eventRegistryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode event registry response: %w", err))
	}
	return &payload, nil
}

func mapEventRegistryArticle(item eventRegistryArticle, now time.Time) RawArticle {
	summary := item.Body
	if strings.TrimSpace(summary) == "" {
		summary = item.Summary
	}
	source := "Event Registry"
	if item.Source != nil && strings.TrimSpace(item.Source.Title) != "" {
		source = strings.TrimSpace(item.Source.Title)
	}
	return RawArticle{
		Title:       item.Title,
		URL:         item.URL,
		Summary:     summary,
		ImageURL:    item.Image,
		PublishedAt: parsePublished(item.DateTime, item.Date, now),
		Source:      source,
		Language:    item.Lang,
	}
}

// parsePublished tries dateTime, then date, then falls back to now.
func parsePublished(dateTime, date string, now time.Time) time.Time {
	if v := strings.TrimSpace(dateTime); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	if v := strings.TrimSpace(date); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			return t.UTC()
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	return now
}
