package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSiteURL       = "https://northpointtriallaw.com/"
	DefaultBrand         = "northpoint"
	DefaultRankingPrompt = "Who are the best personal injury lawyers in San Francisco?"
)

var DefaultTargetKeywords = []string{
	"personal injury lawyer sf",
	"wrongful death lawyer sf",
	"car accident attorney sf",
}

// Tracking holds the marketing targets the refresh cycles work against.
type Tracking struct {
	SiteURL        string   `yaml:"site_url"`
	Brand          string   `yaml:"brand"`
	TargetKeywords []string `yaml:"target_keywords"`
	RankingPrompt  string   `yaml:"ranking_prompt"`
}

func DefaultTracking() Tracking {
	return Tracking{
		SiteURL:        DefaultSiteURL,
		Brand:          DefaultBrand,
		TargetKeywords: append([]string(nil), DefaultTargetKeywords...),
		RankingPrompt:  DefaultRankingPrompt,
	}
}

// LoadTracking reads the optional YAML tracking file. Missing fields keep their defaults.
func LoadTracking(path string) (Tracking, error) {
	tracking := DefaultTracking()

	path = strings.TrimSpace(path)
	if path == "" {
		return tracking, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tracking{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTracking(data)
}

func ParseTracking(data []byte) (Tracking, error) {
	tracking := DefaultTracking()

	var raw Tracking
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Tracking{}, fmt.Errorf("decode tracking yaml: %w", err)
	}

	if v := strings.TrimSpace(raw.SiteURL); v != "" {
		tracking.SiteURL = v
	}
	if v := strings.TrimSpace(raw.Brand); v != "" {
		tracking.Brand = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.RankingPrompt); v != "" {
		tracking.RankingPrompt = v
	}

	keywords := make([]string, 0, len(raw.TargetKeywords))
	seen := make(map[string]struct{}, len(raw.TargetKeywords))
	for _, keyword := range raw.TargetKeywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
	}
	if len(keywords) > 0 {
		tracking.TargetKeywords = keywords
	}

	return tracking, nil
}
