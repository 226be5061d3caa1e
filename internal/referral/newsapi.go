package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/cache"
	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/news"
	"northpointtriallaw.com/opsdash/internal/retry"
)

const (
	NewsAPIEndpoint   = "https://newsapi.org/v2/everything"
	newsAPIName       = "newsapi"
	newsAPIPageSize   = 10
	maxErrorBodyBytes = 4096

	mockArticleURL    = "https://example.com/mock-news-article"
	mockArticleSource = "Demo News"
)

// Story is one news hit about an attorney.
type Story struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"urlToImage,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
}

// NewsSearcher finds recent stories for a query.
type NewsSearcher interface {
	Search(ctx context.Context, query string) []Story
}

type NewsAPIConfig struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	Retry      retry.Config
	Cache      cache.JSON
	CacheTTL   time.Duration
}

// NewsAPI searches newsapi.org. Failures and a missing key yield no stories.
type NewsAPI struct {
	cfg    NewsAPIConfig
	logger zerolog.Logger
}

func NewNewsAPI(cfg NewsAPIConfig, logger zerolog.Logger) *NewsAPI {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Endpoint == "" {
		cfg.Endpoint = NewsAPIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	return &NewsAPI{cfg: cfg, logger: logger.With().Str("source", newsAPIName).Logger()}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (n *NewsAPI) Search(ctx context.Context, query string) []Story {
	if n.cfg.APIKey == "" {
		n.logger.Warn().Msg("NEWS_API_KEY not configured, skipping NewsAPI search")
		metrics.UpstreamCalls.WithLabelValues(newsAPIName, "skipped").Inc()
		return nil
	}

	var cached []Story
	if hit, err := n.cfg.Cache.Get(ctx, query, &cached); err != nil {
		n.logger.Warn().Err(err).Msg("news cache lookup failed")
	} else if hit {
		return cached
	}

	payload, err := retry.DoWithResult(ctx, n.cfg.Retry, func() (*newsAPIResponse, error) {
		return n.get(ctx, query)
	})
	metrics.UpstreamCalls.WithLabelValues(newsAPIName, metrics.Outcome(err)).Inc()
	if err != nil {
		n.logger.Error().Err(err).Str("query", query).Msg("newsapi search failed")
		return nil
	}

	now := globaltime.UTC()
	stories := make([]Story, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		title := strings.TrimSpace(a.Title)
		if title == "" || strings.TrimSpace(a.URL) == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			published = now
		}
		stories = append(stories, Story{
			Title:       title,
			Description: news.StripHTML(a.Description),
			URL:         strings.TrimSpace(a.URL),
			ImageURL:    strings.TrimSpace(a.URLToImage),
			PublishedAt: published.UTC(),
			Source:      strings.TrimSpace(a.Source.Name),
		})
	}

	if len(stories) > 0 {
		if err := n.cfg.Cache.Set(ctx, query, stories, n.cfg.CacheTTL); err != nil {
			n.logger.Warn().Err(err).Msg("news cache store failed")
		}
	}
	return stories
}

func (n *NewsAPI) get(ctx context.Context, query string) (*newsAPIResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(newsAPIPageSize))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-API-Key", n.cfg.APIKey)

	resp, err := n.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get newsapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := fmt.Errorf("newsapi status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var payload newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode newsapi response: %w", err))
	}
	return &payload, nil
}

// MockStory is the stand-in hit used when no real coverage is found.
func MockStory(firstName, lastName string, now time.Time) Story {
	return Story{
		Title:       fmt.Sprintf("Recent case involving %s %s", firstName, lastName),
		Description: "Mock news article for demonstration purposes",
		URL:         mockArticleURL,
		PublishedAt: now,
		Source:      mockArticleSource,
	}
}

// SearchQuery is the news query for one attorney.
func SearchQuery(firstName, lastName string) string {
	return fmt.Sprintf("%s %s personal injury", firstName, lastName)
}
