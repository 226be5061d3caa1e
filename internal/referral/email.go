package referral

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"northpointtriallaw.com/opsdash/internal/metrics"
	"northpointtriallaw.com/opsdash/internal/retry"
)

const (
	emailModel       = openai.GPT3Dot5Turbo
	emailMaxTokens   = 200
	emailTemperature = 0.7
	emailSystem      = "Write a concise, collegial 80-word email from Northpoint Trial Law congratulating an attorney on their recent news coverage. Be professional, warm, and brief."
	openAIName       = "openai"
)

var subjectPrefix = regexp.MustCompile(`(?i)subject:\s*`)

type Email struct {
	Subject string
	Body    string
}

// EmailWriter drafts a congratulation email. It always returns a usable email.
type EmailWriter interface {
	Draft(ctx context.Context, firstName, storyTitle string) Email
}

type OpenAIEmailWriter struct {
	client *openai.Client
	retry  retry.Config
	logger zerolog.Logger
}

// NewOpenAIEmailWriter returns a writer that falls back to the template when
// apiKey is empty or a completion fails. baseURL may be empty.
func NewOpenAIEmailWriter(apiKey, baseURL string, httpClient *http.Client, retryCfg retry.Config, logger zerolog.Logger) *OpenAIEmailWriter {
	w := &OpenAIEmailWriter{retry: retryCfg, logger: logger}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return w
	}
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	w.client = openai.NewClientWithConfig(cfg)
	return w
}

func (w *OpenAIEmailWriter) Draft(ctx context.Context, firstName, storyTitle string) Email {
	if w.client == nil {
		w.logger.Warn().Msg("OPENAI_API_KEY not configured, using template email")
		return FallbackEmail(firstName, storyTitle)
	}

	content, err := retry.DoWithResult(ctx, w.retry, func() (string, error) {
		resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: emailModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: emailSystem},
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Write a congratulatory email to %s about their recent coverage: \"%s\". Include a subject line.", firstName, storyTitle)},
			},
			MaxTokens:   emailMaxTokens,
			Temperature: emailTemperature,
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
				return "", retry.Permanent(err)
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	metrics.UpstreamCalls.WithLabelValues(openAIName, metrics.Outcome(err)).Inc()
	if err != nil {
		w.logger.Error().Err(err).Msg("email generation failed, using template email")
		return FallbackEmail(firstName, storyTitle)
	}
	return ParseEmail(content, firstName)
}

// ParseEmail takes the first line mentioning "subject:" as the subject and the
// remaining non-empty lines as the body. Without such a line the whole text is
// the body under the default subject.
func ParseEmail(content, firstName string) Email {
	email := Email{Subject: defaultSubject(firstName), Body: content}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	subjectAt := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "subject:") {
			subjectAt = i
			break
		}
	}
	if subjectAt < 0 {
		return email
	}

	subject := lines[subjectAt]
	if loc := subjectPrefix.FindStringIndex(subject); loc != nil {
		subject = subject[:loc[0]] + subject[loc[1]:]
	}
	email.Subject = strings.TrimSpace(subject)
	body := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "subject:") {
			body = append(body, line)
		}
	}
	email.Body = strings.TrimSpace(strings.Join(body, "\n"))
	return email
}

func FallbackEmail(firstName, storyTitle string) Email {
	return Email{
		Subject: defaultSubject(firstName),
		Body: fmt.Sprintf("Hi %s,\n\nI saw your recent coverage regarding \"%s\" and wanted to congratulate you on the great work. "+
			"Your dedication to personal injury law is inspiring.\n\nBest regards,\nNorthpoint Trial Law Team", firstName, storyTitle),
	}
}

func defaultSubject(firstName string) string {
	return fmt.Sprintf("Congratulations on your recent coverage, %s!", firstName)
}
