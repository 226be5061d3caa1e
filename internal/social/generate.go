package social

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"northpointtriallaw.com/opsdash/internal/metrics"
)

const (
	captionModel       = openai.GPT3Dot5Turbo
	captionTemperature = 0.85
	captionMaxTokens   = 64
	captionCount       = 3
	captionSystem      = "Write a clever tweet-length caption for a personal-injury law firm. Keep it professional, empathetic, and under 280 characters. Focus on helping clients and providing legal support."
	openAIName         = "openai"

	msgUnavailable  = "Service temporarily unavailable. Please try again later."
	msgRateLimited  = "Too many requests. Please wait a moment before trying again."
	msgAuthFailed   = "API authentication failed. Please contact support."
	msgPolicy       = "Your prompt violates content policy. Please try a different prompt."
	msgTooLong      = "Your prompt is too long. Please shorten it and try again."
	msgUnexpected   = "An unexpected error occurred while generating captions. Please try again."
	msgNoCaptions   = "No captions were generated. Please try again with a different prompt."
	msgNoValidTexts = "No valid captions were generated. Please try again with a different prompt."
)

type Generator struct {
	client *openai.Client
	logger zerolog.Logger
}

// NewGenerator returns a generator that answers 500 when apiKey is empty.
// baseURL may be empty.
func NewGenerator(apiKey, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Generator {
	g := &Generator{logger: logger}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return g
	}
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	g.client = openai.NewClientWithConfig(cfg)
	return g
}

func (g *Generator) Configured() bool {
	return g.client != nil
}

// Generate validates raw and returns up to three non-empty captions. Every error
// is a *Error.
func (g *Generator) Generate(ctx context.Context, raw any) ([]string, error) {
	prompt, err := ValidatePrompt(raw)
	if err != nil {
		return nil, err
	}
	if g.client == nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: msgUnavailable}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       captionModel,
		Temperature: captionTemperature,
		MaxTokens:   captionMaxTokens,
		N:           captionCount,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: captionSystem},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	metrics.UpstreamCalls.WithLabelValues(openAIName, metrics.Outcome(err)).Inc()
	if err != nil {
		mapped := MapUpstreamError(err)
		g.logger.Error().Err(err).Int("status", mapped.Status).Msg("caption generation failed")
		return nil, mapped
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Status: http.StatusInternalServerError, Message: msgNoCaptions}
	}
	captions := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			captions = append(captions, text)
		}
	}
	if len(captions) == 0 {
		return nil, &Error{Status: http.StatusInternalServerError, Message: msgNoValidTexts}
	}
	return captions, nil
}

// MapUpstreamError turns an OpenAI client error into a user-facing *Error.
func MapUpstreamError(err error) *Error {
	wrap := func(status int, message string) *Error {
		return &Error{Status: status, Message: message, cause: err}
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	message := err.Error()
	if apiErr != nil {
		message += " " + apiErr.Type + " " + fmt.Sprint(apiErr.Code)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return wrap(http.StatusTooManyRequests, msgRateLimited)
	case status == http.StatusUnauthorized:
		return wrap(http.StatusInternalServerError, msgAuthFailed)
	case status == http.StatusBadRequest && strings.Contains(message, "content_policy"):
		return wrap(http.StatusBadRequest, msgPolicy)
	case strings.Contains(message, "maximum context length"):
		return wrap(http.StatusBadRequest, msgTooLong)
	case isUnreachable(err):
		return wrap(http.StatusServiceUnavailable, msgUnavailable)
	}
	return wrap(http.StatusInternalServerError, msgUnexpected)
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
