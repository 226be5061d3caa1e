// Package social generates short marketing captions for the firm.
package social

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinPromptChars = 3
	MaxPromptChars = 500
)

// ErrInvalidPrompt is matched by every prompt validation *Error.
var ErrInvalidPrompt = errors.New("invalid prompt")

// Error carries the HTTP status and the user-facing message for a failed request.
type Error struct {
	Status  int
	Message string
	invalid bool
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	return target == ErrInvalidPrompt && e.invalid
}

func invalid(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, invalid: true}
}

// blockedPatterns are checked in order, word-bounded and case-insensitive.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hate|kill|murder|violence|abuse|racist|sexist|nazi|terrorist)\b`),
	regexp.MustCompile(`(?i)\b(fuck|shit|damn|bitch|asshole|bastard)\b`),
	regexp.MustCompile(`(?i)\b(suicide|self-harm|cutting|overdose)\b`),
}

// ValidatePrompt checks a decoded JSON value and returns the trimmed prompt.
func ValidatePrompt(raw any) (string, error) {
	prompt, ok := raw.(string)
	if !ok || prompt == "" {
		return "", invalid("Prompt is required and must be a string.")
	}

	trimmed := strings.TrimSpace(prompt)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return "", invalid("Prompt cannot be empty.")
	case n < MinPromptChars:
		return "", invalid("Prompt must be at least 3 characters long.")
	case n > MaxPromptChars:
		return "", invalid("Prompt must be less than 500 characters.")
	}

	for _, pattern := range blockedPatterns {
		if pattern.MatchString(trimmed) {
			return "", invalid("Prompt contains inappropriate content. Please use professional language.")
		}
	}
	return trimmed, nil
}
