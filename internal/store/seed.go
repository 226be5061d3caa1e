package store

import (
	"context"
	"fmt"
	"time"

	"northpointtriallaw.com/opsdash/internal/globaltime"
)

// DemoArticles returns the articles the memory store starts with, so demo mode
// has data before any refresh. news.DemoArticles is the refresh fallback instead.
func DemoArticles(now time.Time) []Article {
	return []Article{
		{
			Title:       "San Francisco Car Accident Leaves Two Injured",
			URL:         "https://example.com/sf-accident-1",
			Tag:         "crash",
			Summary:     "A two-car collision in downtown San Francisco resulted in minor injuries to both drivers.",
			PublishedAt: now,
			Source:      "Demo News",
			Language:    "en",
		},
		{
			Title:       "Medical Malpractice Case Settled for $2M in Oakland",
			URL:         "https://example.com/malpractice-settlement",
			Tag:         "medical malpractice",
			Summary:     "A local hospital settles a malpractice case involving surgical complications.",
			PublishedAt: now.Add(-time.Hour),
			Source:      "Demo Legal News",
			Language:    "en",
		},
		{
			Title:       "Construction Site Accident in San Jose Under Investigation",
			URL:         "https://example.com/construction-accident",
			Tag:         "construction",
			Summary:     "Worker injured at construction site due to equipment malfunction.",
			PublishedAt: now.Add(-2 * time.Hour),
			Source:      "Demo Safety News",
			Language:    "en",
		},
	}
}

// SeedDemo loads the demo articles into m.
func SeedDemo(ctx context.Context, m *Memory) error {
	for _, a := range DemoArticles(globaltime.UTC()) {
		if _, err := m.UpsertArticle(ctx, a); err != nil {
			return fmt.Errorf("seed %s: %w", a.URL, err)
		}
	}
	return nil
}
