// Package airank asks a set of LLM providers who the best local personal injury
// lawyers are and scores where the firm's brand lands in each answer.
package airank

import (
	"regexp"
	"strings"
)

// MaxNames is how many names are read from a single answer.
const MaxNames = 5

// listPatterns are tried in order against each trimmed line; the first match wins.
var listPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\.\s*(.+)$`),
	regexp.MustCompile(`^-\s*(.+)$`),
	regexp.MustCompile(`^\*\s*(.+)$`),
	regexp.MustCompile(`^(.+)\s*-\s*.+$`),
}

// nameCleanups strip firm suffixes, parentheticals and trailing clauses, in order.
var nameCleanups = []*regexp.Regexp{
	regexp.MustCompile(`\s*-\s*.+$`),
	regexp.MustCompile(`\s*\(.+\)$`),
	regexp.MustCompile(`\s*,\s*.+$`),
}

// ParseTopLawyers extracts up to MaxNames names from a list-shaped answer.
func ParseTopLawyers(text string) []string {
	names := make([]string, 0, MaxNames)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		for _, pattern := range listPatterns {
			match := pattern.FindStringSubmatch(trimmed)
			if match == nil {
				continue
			}
			if name := cleanName(match[1]); name != "" {
				names = append(names, name)
			}
			break
		}

		if len(names) >= MaxNames {
			break
		}
	}
	return names
}

func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	for _, cleanup := range nameCleanups {
		name = cleanup.ReplaceAllString(name, "")
	}
	return name
}

// ScoreBrand finds the first name containing brand (case-insensitive). At 1-indexed
// position r it scores 6-r with rank r; absent, it scores 0 with a nil rank.
func ScoreBrand(names []string, brand string) (int, *int) {
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" {
		return 0, nil
	}
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), brand) {
			rank := i + 1
			return MaxNames + 1 - rank, &rank
		}
	}
	return 0, nil
}
