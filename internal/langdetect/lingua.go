// Package langdetect tags news text with an ISO 639-1 language code.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample the detector is asked about.
const minLetters = 6

// Languages seen in Bay Area news coverage.
var candidates = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.Chinese,
	lingua.Vietnamese,
	lingua.Tagalog,
	lingua.Korean,
	lingua.Russian,
	lingua.French,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns a lowercase two-letter code, or "" when the text is too
// short or the detector is not confident.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minLetters {
		return ""
	}

	language, ok := getDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			Build()
	})
	return detector
}
