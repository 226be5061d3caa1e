package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"northpointtriallaw.com/opsdash/internal/auth"
)

const placeholderKeySuffix = "_here"

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Port        int    `envconfig:"PORT" default:"3002"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBName      string `envconfig:"DB_NAME" default:"northpoint"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD" default:""`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	GSCServiceKey       string `envconfig:"GSC_SERVICE_KEY"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey     string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY"`
	CohereAPIKey        string `envconfig:"COHERE_API_KEY"`
	NewsAPIKey          string `envconfig:"NEWS_API_KEY"`
	EventRegistryAPIKey string `envconfig:"EVENT_REGISTRY_API_KEY"`

	RedisURL     string        `envconfig:"REDIS_URL"`
	NewsCacheTTL time.Duration `envconfig:"NEWS_CACHE_TTL" default:"6h"`

	UpstreamTimeout       time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	UpstreamRetryAttempts int           `envconfig:"UPSTREAM_RETRY_ATTEMPTS" default:"1"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	TrackingFile       string `envconfig:"TRACKING_FILE"`
	AdminKeyHash       string `envconfig:"ADMIN_KEY_HASH"`

	Tracking Tracking `ignored:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	tracking, err := LoadTracking(cfg.TrackingFile)
	if err != nil {
		return nil, fmt.Errorf("load tracking file: %w", err)
	}
	cfg.Tracking = tracking

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" && strings.TrimSpace(c.DBHost) == "" {
		return fmt.Errorf("DATABASE_URL or DB_HOST is required")
	}
	if c.DBPort <= 0 || c.DBPort > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.UpstreamRetryAttempts < 1 {
		return fmt.Errorf("UPSTREAM_RETRY_ATTEMPTS must be >= 1")
	}
	if c.NewsCacheTTL < 0 {
		return fmt.Errorf("NEWS_CACHE_TTL must be >= 0")
	}
	if hash := strings.TrimSpace(c.AdminKeyHash); hash != "" {
		if err := auth.CheckHash(hash); err != nil {
			return fmt.Errorf("ADMIN_KEY_HASH: %w", err)
		}
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the DB_* fields.
func (c *Config) DSN() string {
	if c == nil {
		return ""
	}
	if dsn := strings.TrimSpace(c.DatabaseURL); dsn != "" {
		return dsn
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", strings.TrimSpace(c.DBHost), c.DBPort),
		Path:   "/" + strings.TrimSpace(c.DBName),
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	if mode := strings.TrimSpace(c.DBSSLMode); mode != "" {
		u.RawQuery = url.Values{"sslmode": []string{mode}}.Encode()
	}
	return u.String()
}

// APIKey trims a credential and treats template placeholders as unset.
func APIKey(raw string) string {
	key := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(key), "your_") && strings.HasSuffix(strings.ToLower(key), placeholderKeySuffix) {
		return ""
	}
	return key
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return []string{"*"}
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
