package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateArticlePayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Construction Site Accident in San Jose Under Investigation",
		"url":"https://example.com/construction-accident",
		"tag":"construction",
		"summary":"Worker injured at construction site due to equipment malfunction.",
		"image_url":"https://example.com/img.jpg",
		"published_at":"2025-03-01T12:00:00Z",
		"source":"Demo Safety News",
		"language":"en"
	}`)

	article, err := ValidateArticlePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if article.Tag != "construction" {
		t.Fatalf("expected tag=construction, got %q", article.Tag)
	}
}

func TestValidateArticlePayload_MissingURL(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"No link",
		"tag":"general",
		"published_at":"2025-03-01T12:00:00Z",
		"source":"Event Registry"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing url")
	}
}

func TestValidateArticlePayload_UnknownTag(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Odd tag",
		"url":"https://example.com/a",
		"tag":"maritime",
		"published_at":"2025-03-01T12:00:00Z",
		"source":"Event Registry"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unknown tag")
	}
}

func TestValidateArticlePayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"   ",
		"url":"https://example.com/a",
		"tag":"general",
		"published_at":"2025-03-01T12:00:00Z",
		"source":"Event Registry"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateArticlePayload_InvalidPublishedAt(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Bad date",
		"url":"https://example.com/a",
		"tag":"general",
		"published_at":"yesterday",
		"source":"Event Registry"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for invalid published_at")
	}
}

func TestValidateArticlePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"title":"a"} {"title":"b"}`)
	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected trailing content to be rejected")
	}
}

func TestValidateArticle(t *testing.T) {
	err := ValidateArticle(Article{
		Title:       "Crash on the Bay Bridge",
		URL:         "https://example.com/bay-bridge",
		Tag:         "crash",
		PublishedAt: "2025-03-01T12:00:00Z",
		Source:      "Event Registry",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
