package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed article.schema.json
var articleSchemaJSON string

// Article is the normalized news record as it crosses the validation boundary.
type Article struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Tag         string  `json:"tag"`
	Summary     string  `json:"summary,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	PublishedAt string  `json:"published_at"`
	Source      string  `json:"source"`
	Language    string  `json:"language,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticlePayload decodes raw strictly, checks it against the article schema
// and applies the semantic checks the schema cannot express.
func ValidateArticlePayload(payload json.RawMessage) (*Article, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var article Article
	if err := json.Unmarshal(normalized, &article); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&article); err != nil {
		return nil, err
	}

	return &article, nil
}

// ValidateArticle round-trips a in-memory article through ValidateArticlePayload.
func ValidateArticle(a Article) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}
	_, err = ValidateArticlePayload(raw)
	return err
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("article.schema.json", strings.NewReader(articleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("article.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(a *Article) error {
	if a == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(a.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if err := validateURI("url", a.URL); err != nil {
		return err
	}
	if a.ImageURL != nil {
		if err := validateURI("image_url", *a.ImageURL); err != nil {
			return err
		}
	}
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(a.PublishedAt)); err != nil {
		return fmt.Errorf("published_at must be RFC3339: %w", err)
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
