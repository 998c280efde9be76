// Package config reads server configuration from environment variables and
// the optional governance policy profile from YAML.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// DatabaseURL selects Postgres; empty means lite mode (local SQLite).
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	// GitHub code repository integration. Empty token or repo leaves
	// modify_code and deploy unavailable.
	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string

	// DeployWebhookURL, when set, triggers CI on deploy instead of the
	// built-in version bump.
	DeployWebhookURL string

	// RedisAddr enables the shared presence registry; empty keeps presence
	// in process memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Audit export destination. Empty bucket disables uploads.
	AuditBucket   string
	AuditRegion   string
	AuditEndpoint string

	RateLimitRPS   int
	RateLimitBurst int

	OTLPEndpoint string
	OTLPEnabled  bool

	// ProfilePath points at the governance policy profile YAML.
	ProfilePath string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	branch := os.Getenv("GITHUB_BRANCH")
	if branch == "" {
		branch = "main"
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         ttl,
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:      os.Getenv("GITHUB_OWNER"),
		GitHubRepo:       os.Getenv("GITHUB_REPO"),
		GitHubBranch:     branch,
		DeployWebhookURL: os.Getenv("DEPLOY_WEBHOOK_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envInt("REDIS_DB", 0),
		AuditBucket:      os.Getenv("AUDIT_BUCKET"),
		AuditRegion:      os.Getenv("AUDIT_REGION"),
		AuditEndpoint:    os.Getenv("AUDIT_ENDPOINT"),
		RateLimitRPS:     envInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   envInt("RATE_LIMIT_BURST", 40),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
		OTLPEnabled:      os.Getenv("OTLP_ENABLED") == "true",
		ProfilePath:      os.Getenv("POLICY_PROFILE"),
	}
}

// GitHubConfigured reports whether the code repository integration has
// everything it needs.
func (c *Config) GitHubConfigured() bool {
	return c.GitHubToken != "" && c.GitHubOwner != "" && c.GitHubRepo != ""
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
