// Package language normalizes the language labels upstream news feeds attach to
// articles.
package language

import "strings"

// Event Registry labels articles with ISO 639-3 codes.
var iso6393 = map[string]string{
	"eng": "en",
	"spa": "es",
	"zho": "zh",
	"vie": "vi",
	"tgl": "tl",
	"kor": "ko",
	"rus": "ru",
	"fra": "fr",
}

// NormalizeTag lowercases a language tag and joins subtags with "-".
// Returns "" when the value is blank or contains non-letters.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	parts := strings.Split(trimmed, "-")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isAlphaLower(part) {
			return ""
		}
		normalized = append(normalized, part)
	}

	if len(normalized) == 0 {
		return ""
	}
	return strings.Join(normalized, "-")
}

// NormalizeCode returns the primary subtag, for example "en" from "en-US".
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

// ISO6391 maps an upstream label to a two-letter code. Unknown three-letter
// codes and anything else that is not two letters yield "".
func ISO6391(raw string) string {
	code := NormalizeCode(raw)
	if mapped, ok := iso6393[code]; ok {
		return mapped
	}
	if len(code) != 2 {
		return ""
	}
	return code
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
