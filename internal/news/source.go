package news

import (
	"context"
	"time"
)

// RawArticle is an upstream article before normalization.
type RawArticle struct {
	Title       string
	URL         string
	Summary     string
	ImageURL    string
	PublishedAt time.Time
	Source      string
	// Language is the upstream label, used when detection is inconclusive.
	Language string
}

// FetchResult is what a Source returns. Synthetic is set when the articles are
// demo data rather than upstream results.
type FetchResult struct {
	Articles  []RawArticle
	Synthetic bool
}

// Source fetches raw articles. Implementations never return an error for
// expected upstream failures; they return an empty or synthetic result instead.
type Source interface {
	Name() string
	Fetch(ctx context.Context) FetchResult
}

// DemoArticles is the fallback set returned when Event Registry is not configured
// or returns nothing. It flows through Normalize and the store like real results.
// store.DemoArticles is the separate seed for the memory store.
func DemoArticles(now time.Time) []RawArticle {
	return []RawArticle{
		{
			Title:       "Major Personal Injury Settlement Reached in San Francisco",
			URL:         "https://example.com/major-settlement-sf",
			Summary:     "A significant personal injury case has been settled for $3.2 million involving a construction accident in downtown San Francisco.",
			PublishedAt: now,
			Source:      "Demo Legal News",
		},
		{
			Title:       "New California Laws Affect Personal Injury Claims",
			URL:         "https://example.com/new-ca-laws-injury",
			Summary:     "Recent legislative changes in California are expected to impact how personal injury claims are processed and compensated.",
			PublishedAt: now.Add(-time.Hour),
			Source:      "Demo Law Review",
		},
		{
			Title:       "Medical Malpractice Case Victory for Bay Area Firm",
			URL:         "https://example.com/malpractice-victory",
			Summary:     "Local personal injury law firm secures $1.8 million verdict in medical malpractice case involving surgical complications.",
			PublishedAt: now.Add(-2 * time.Hour),
			Source:      "Demo Medical Legal",
		},
	}
}
