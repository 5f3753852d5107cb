// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedditConfig provides settings for the Reddit API client.
type RedditConfig interface {
	GetRedditAPIBaseURL() string
	GetRedditTokenURL() string
	GetRedditClientID() string
	GetRedditClientSecret() string
	GetRedditUserAgent() string
	GetRedditRequestsPerMinute() int
}

// GeminiConfig provides settings for the Gemini scoring model.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsScoringEnabled() bool
}

// SchedulerConfig provides settings for background schedulers and asynq.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetHuntInterval() time.Duration
	GetHuntRunBudget() time.Duration
	GetResponsePollInterval() time.Duration
	GetTenantConcurrency() int
}

// EmailConfig provides settings for email notification delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// CryptoConfig provides the key used to encrypt stored provider credentials.
type CryptoConfig interface {
	GetCredentialCipherKey() []byte
}

// TierConfig provides settings for subscription tier limits.
type TierConfig interface {
	GetTierLimitsPath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedditAPIBaseURL        string
	RedditTokenURL          string
	RedditClientID          string
	RedditClientSecret      string
	RedditUserAgent         string
	RedditRequestsPerMinute int
	GeminiAPIKey            string
	GeminiModel             string
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	HuntInterval            time.Duration
	HuntRunBudget           time.Duration
	ResponsePollInterval    time.Duration
	TenantConcurrency       int
	EmailEnabled            bool
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	CredentialCipherKey     []byte
	TierLimitsPath          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }

// RedditConfig implementation
func (c *Config) GetRedditAPIBaseURL() string      { return c.RedditAPIBaseURL }
func (c *Config) GetRedditTokenURL() string        { return c.RedditTokenURL }
func (c *Config) GetRedditClientID() string        { return c.RedditClientID }
func (c *Config) GetRedditClientSecret() string    { return c.RedditClientSecret }
func (c *Config) GetRedditUserAgent() string       { return c.RedditUserAgent }
func (c *Config) GetRedditRequestsPerMinute() int  { return c.RedditRequestsPerMinute }

// GeminiConfig implementation
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }
func (c *Config) IsScoringEnabled() bool  { return c.GeminiAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool                { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string                { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                 { return c.AsynqConcurrency }
func (c *Config) GetHuntInterval() time.Duration           { return c.HuntInterval }
func (c *Config) GetHuntRunBudget() time.Duration          { return c.HuntRunBudget }
func (c *Config) GetResponsePollInterval() time.Duration   { return c.ResponsePollInterval }
func (c *Config) GetTenantConcurrency() int                { return c.TenantConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// CryptoConfig implementation
func (c *Config) GetCredentialCipherKey() []byte { return c.CredentialCipherKey }

// TierConfig implementation
func (c *Config) GetTierLimitsPath() string { return c.TierLimitsPath }

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from the environment, optionally seeded by a .env
// file. Required values missing from the environment produce an error rather
// than a partially configured application.
func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		JWTAccessSecret:         os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:            getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:             getList("CORS_ORIGINS"),
		CORSAllowCreds:          getBool("CORS_ALLOW_CREDENTIALS", true),
		RedditAPIBaseURL:        getEnv("REDDIT_API_BASE_URL", "https://oauth.reddit.com"),
		RedditTokenURL:          getEnv("REDDIT_TOKEN_URL", "https://www.reddit.com/api/v1/access_token"),
		RedditClientID:          os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret:      os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:         getEnv("REDDIT_USER_AGENT", "leadhunt/1.0"),
		RedditRequestsPerMinute: getInt("REDDIT_REQUESTS_PER_MINUTE", 60),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:        getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        getInt("ASYNQ_CONCURRENCY", 10),
		HuntInterval:            getDuration("HUNT_INTERVAL", 30*time.Minute),
		HuntRunBudget:           getDuration("HUNT_RUN_BUDGET", 25*time.Minute),
		ResponsePollInterval:    getDuration("RESPONSE_POLL_INTERVAL", 10*time.Minute),
		TenantConcurrency:       getInt("TENANT_CONCURRENCY", 3),
		EmailEnabled:            getBool("EMAIL_ENABLED", false),
		SMTPHost:                os.Getenv("SMTP_HOST"),
		SMTPPort:                getInt("SMTP_PORT", 587),
		SMTPUsername:            os.Getenv("SMTP_USERNAME"),
		SMTPPassword:            os.Getenv("SMTP_PASSWORD"),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "LeadHunt"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", "no-reply@leadhunt.local"),
		TierLimitsPath:          os.Getenv("TIER_LIMITS_PATH"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if key := os.Getenv("CREDENTIAL_CIPHER_KEY"); key != "" {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("CREDENTIAL_CIPHER_KEY must be hex encoded: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("CREDENTIAL_CIPHER_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		cfg.CredentialCipherKey = decoded
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
