package airank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"northpointtriallaw.com/opsdash/internal/retry"
)

func TestProvidersWithoutKeysFail(t *testing.T) {
	t.Parallel()

	for _, p := range DefaultProviders(Keys{}, nil, retry.DefaultConfig()) {
		if _, err := p.Query(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "not configured") {
			t.Fatalf("%s: expected not configured error, got %v", p.Name(), err)
		}
	}
}

func TestDefaultProvidersOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, p := range DefaultProviders(Keys{}, nil, retry.DefaultConfig()) {
		names = append(names, p.Name())
	}
	want := []string{ModelOpenAI, ModelClaude, ModelGemini, ModelCohere}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected provider order: got %v want %v", names, want)
	}
}

func TestAnthropicProviderQuery(t *testing.T) {
	t.Parallel()

	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != anthropicVersion {
			http.Error(w, "bad headers", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"1. Northpoint Trial Law"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client(), Retry: retry.DefaultConfig()})
	answer, err := p.Query(context.Background(), "who?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer != "1. Northpoint Trial Law" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if got.Model != anthropicModel || got.MaxTokens != 500 || len(got.Messages) != 1 || got.Messages[0].Content != "who?" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestCohereProviderQuery(t *testing.T) {
	t.Parallel()

	var got cohereRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"generations":[{"text":"- Alpha Law"}]}`))
	}))
	defer srv.Close()

	p := NewCohereProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client(), Retry: retry.DefaultConfig()})
	answer, err := p.Query(context.Background(), "who?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer != "- Alpha Law" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if got.Model != cohereModel || got.MaxTokens != 500 || got.Temperature != 0.7 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestPostJSONClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = time.Millisecond
	p := NewCohereProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client(), Retry: cfg})
	if _, err := p.Query(context.Background(), "who?"); err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("unexpected attempts: got %d want 1", calls)
	}
}

func TestOpenAIProviderQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != openAIModel {
			http.Error(w, `{"error":{"message":"wrong model"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"1. Northpoint"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client(), Retry: retry.DefaultConfig()})
	answer, err := p.Query(context.Background(), "who?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer != "1. Northpoint" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestGeminiProviderQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, geminiModel+":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"1. Northpoint Trial Law"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/", HTTPClient: srv.Client(), Retry: retry.DefaultConfig()})
	answer, err := p.Query(context.Background(), "who?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer != "1. Northpoint Trial Law" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	t.Parallel()

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = time.Millisecond

	cases := []struct {
		name  string
		err   error
		calls int
	}{
		{name: "bad request", err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, calls: 1},
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, calls: 3},
		{name: "server error", err: &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}, calls: 3},
	}
	for _, tc := range cases {
		calls := 0
		_ = retry.Do(context.Background(), cfg, func() error {
			calls++
			return classifyOpenAIError(tc.err)
		})
		if calls != tc.calls {
			t.Fatalf("%s: unexpected attempts: got %d want %d", tc.name, calls, tc.calls)
		}
	}
}
