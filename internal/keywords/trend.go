package keywords

import (
	"fmt"
	"sort"
	"time"

	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	// AlertPosition is the search position a keyword must stay above for an alert.
	AlertPosition = 25.0
	AlertWindow   = 3
	DefaultDays   = 90
)

type Point struct {
	Date        string  `json:"date"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type Trend struct {
	Keyword     string  `json:"keyword"`
	Data        []Point `json:"data"`
	Alert       bool    `json:"alert"`
	AlertReason string  `json:"alertReason"`
}

// EvaluateTrend alerts when each of the three most recent samples has a position
// worse than AlertPosition.
func EvaluateTrend(samples []store.KeywordSnapshot) (bool, string) {
	if len(samples) < AlertWindow {
		return false, ""
	}

	recent := make([]store.KeywordSnapshot, len(samples))
	copy(recent, samples)
	sortNewestFirst(recent)
	recent = recent[:AlertWindow]

	sum := 0.0
	for _, s := range recent {
		if s.Position <= AlertPosition {
			return false, ""
		}
		sum += s.Position
	}
	avg := sum / float64(AlertWindow)
	return true, fmt.Sprintf("Position dropped below 25 for 3 consecutive days (avg: %.1f)", avg)
}

// BuildTrends keeps samples dated on or after now-days, groups them by keyword in
// keyword order and evaluates each group.
func BuildTrends(snapshots []store.KeywordSnapshot, now time.Time, days int) []Trend {
	cutoff := now.UTC().AddDate(0, 0, -days)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	groups := make(map[string][]store.KeywordSnapshot)
	for _, s := range snapshots {
		if s.Date.Before(cutoff) {
			continue
		}
		groups[s.Keyword] = append(groups[s.Keyword], s)
	}

	names := make([]string, 0, len(groups))
	for keyword := range groups {
		names = append(names, keyword)
	}
	sort.Strings(names)

	trends := make([]Trend, 0, len(names))
	for _, keyword := range names {
		series := groups[keyword]
		sortNewestFirst(series)

		alert, reason := EvaluateTrend(series)
		points := make([]Point, 0, len(series))
		for _, s := range series {
			points = append(points, Point{
				Date:        s.Date.UTC().Format(time.DateOnly),
				Clicks:      s.Clicks,
				Impressions: s.Impressions,
				CTR:         s.CTR,
				Position:    s.Position,
			})
		}
		trends = append(trends, Trend{Keyword: keyword, Data: points, Alert: alert, AlertReason: reason})
	}
	return trends
}

// Rollup sums clicks and impressions and averages ctr and position.
func Rollup(keyword string, samples []store.KeywordSnapshot) store.KeywordMetric {
	m := store.KeywordMetric{Keyword: keyword, Samples: len(samples)}
	if len(samples) == 0 {
		return m
	}
	var ctr, position float64
	for _, s := range samples {
		m.Clicks += s.Clicks
		m.Impressions += s.Impressions
		ctr += s.CTR
		position += s.Position
	}
	m.CTR = ctr / float64(len(samples))
	m.Position = position / float64(len(samples))
	return m
}

func sortNewestFirst(samples []store.KeywordSnapshot) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Date.After(samples[j].Date)
	})
}
