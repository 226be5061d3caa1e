package airank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"northpointtriallaw.com/opsdash/internal/retry"
)

const (
	ModelOpenAI = "OpenAI"
	ModelClaude = "Claude"
	ModelGemini = "Gemini"
	ModelCohere = "Cohere"

	maxAnswerTokens   = 500
	answerTemperature = 0.7
	maxErrorBodyBytes = 4096

	openAIModel = "gpt-4"

	AnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicModel    = "claude-3-sonnet-20240229"
	anthropicVersion  = "2023-06-01"

	geminiModel = "gemini-pro"

	CohereEndpoint = "https://api.cohere.ai/v1/generate"
	cohereModel    = "command"
)

// Provider answers a single free-text prompt.
type Provider interface {
	Name() string
	Query(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig is shared by every provider. BaseURL overrides the upstream
// endpoint; empty keeps the provider default.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Config
}

func (c ProviderConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func notConfigured(env string) error {
	return fmt.Errorf("%s not configured", env)
}

// Keys groups the credentials for DefaultProviders.
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
	Cohere    string
}

// DefaultProviders returns OpenAI, Claude, Gemini and Cohere in query order.
func DefaultProviders(keys Keys, client *http.Client, retryCfg retry.Config) []Provider {
	base := ProviderConfig{HTTPClient: client, Retry: retryCfg}
	with := func(key string) ProviderConfig {
		cfg := base
		cfg.APIKey = strings.TrimSpace(key)
		return cfg
	}
	return []Provider{
		NewOpenAIProvider(with(keys.OpenAI)),
		NewAnthropicProvider(with(keys.Anthropic)),
		NewGeminiProvider(with(keys.Gemini)),
		NewCohereProvider(with(keys.Cohere)),
	}
}

type OpenAIProvider struct {
	cfg    ProviderConfig
	client *openai.Client
}

func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	p := &OpenAIProvider{cfg: cfg}
	if cfg.APIKey == "" {
		return p
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = cfg.httpClient()
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientCfg)
	return p
}

func (p *OpenAIProvider) Name() string { return ModelOpenAI }

func (p *OpenAIProvider) Query(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", notConfigured("OPENAI_API_KEY")
	}
	return retry.DoWithResult(ctx, p.cfg.Retry, func() (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       openAIModel,
			Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
			MaxTokens:   maxAnswerTokens,
			Temperature: answerTemperature,
		})
		if err != nil {
			return "", classifyOpenAIError(fmt.Errorf("openai chat completion: %w", err))
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// classifyOpenAIError keeps 429 and 5xx retryable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// AnthropicProvider calls the messages API directly.
type AnthropicProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AnthropicEndpoint
	}
	return &AnthropicProvider{cfg: cfg, client: cfg.httpClient()}
}

func (p *AnthropicProvider) Name() string { return ModelClaude }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *AnthropicProvider) Query(ctx context.Context, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", notConfigured("ANTHROPIC_API_KEY")
	}
	body := anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxAnswerTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	return retry.DoWithResult(ctx, p.cfg.Retry, func() (string, error) {
		var resp anthropicResponse
		if err := postJSON(ctx, p.client, p.cfg.BaseURL, headers, body, &resp); err != nil {
			return "", fmt.Errorf("anthropic: %w", err)
		}
		if len(resp.Content) == 0 {
			return "", nil
		}
		return resp.Content[0].Text, nil
	})
}

// GeminiProvider uses the genai SDK against the Gemini API backend.
type GeminiProvider struct {
	cfg ProviderConfig
}

func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	return &GeminiProvider{cfg: cfg}
}

func (p *GeminiProvider) Name() string { return ModelGemini }

func (p *GeminiProvider) Query(ctx context.Context, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", notConfigured("GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.cfg.httpClient(),
		HTTPOptions: genai.HTTPOptions{BaseURL: p.cfg.BaseURL},
	})
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	return retry.DoWithResult(ctx, p.cfg.Retry, func() (string, error) {
		resp, err := client.Models.GenerateContent(ctx, geminiModel, genai.Text(prompt), nil)
		if err != nil {
			return "", fmt.Errorf("gemini generate content: %w", err)
		}
		return resp.Text(), nil
	})
}

// CohereProvider calls the legacy generate endpoint directly.
type CohereProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

func NewCohereProvider(cfg ProviderConfig) *CohereProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = CohereEndpoint
	}
	return &CohereProvider{cfg: cfg, client: cfg.httpClient()}
}

func (p *CohereProvider) Name() string { return ModelCohere }

type cohereRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type cohereResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

func (p *CohereProvider) Query(ctx context.Context, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", notConfigured("COHERE_API_KEY")
	}
	body := cohereRequest{
		Model:       cohereModel,
		Prompt:      prompt,
		MaxTokens:   maxAnswerTokens,
		Temperature: answerTemperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	return retry.DoWithResult(ctx, p.cfg.Retry, func() (string, error) {
		var resp cohereResponse
		if err := postJSON(ctx, p.client, p.cfg.BaseURL, headers, body, &resp); err != nil {
			return "", fmt.Errorf("cohere: %w", err)
		}
		if len(resp.Generations) == 0 {
			return "", nil
		}
		return resp.Generations[0].Text, nil
	})
}

// postJSON sends body as JSON and decodes a 2xx response into out. 4xx responses
// other than 429 are permanent.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
