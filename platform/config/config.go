// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
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

// RedisConfig provides Redis connection settings for caches and the job queue.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetJWTRefreshSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// ProviderConfig describes one LLM provider endpoint. A provider with an
// empty auth key is considered not configured and must never be called.
type ProviderConfig struct {
	Name     string
	AuthKey  string
	OAuthURL string
	Scope    string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// Configured reports whether the provider has a secret and may be invoked.
func (p ProviderConfig) Configured() bool {
	return p.AuthKey != ""
}

// ResolverConfig provides settings for the order resolution pipeline.
type ResolverConfig interface {
	GetPrimaryProvider() ProviderConfig
	GetSecondaryProvider() ProviderConfig
	GetSimilarityThreshold() float64
	GetParseCacheTTL() time.Duration
}

// BotConfig provides settings for the messaging-bot transport.
type BotConfig interface {
	GetBotAPIURL() string
	GetBotToken() string
	GetBotWebhookSecret() string
	GetManagerChatID() int64
}

// ERPConfig provides settings for the external ERP catalog integration.
type ERPConfig interface {
	GetERPBaseURL() string
	GetERPUsername() string
	GetERPPassword() string
	GetERPWebhookToken() string
	GetERPSyncInterval() time.Duration
	IsERPEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketImportArchive() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL      string
	RedisURL         string
	RedisTLSInsecure bool

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	PrimaryProvider   ProviderConfig
	SecondaryProvider ProviderConfig

	SimilarityThreshold float64
	ParseCacheTTL       time.Duration

	BotAPIURL        string
	BotToken         string
	BotWebhookSecret string
	ManagerChatID    int64

	ERPBaseURL      string
	ERPUsername     string
	ERPPassword     string
	ERPWebhookToken string
	ERPSyncInterval time.Duration
	ERPEnabled      bool

	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketImportArchive string
}

// Load reads configuration from the environment, applying defaults and
// validating required settings.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:   mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:  mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		PrimaryProvider: ProviderConfig{
			Name:     "primary",
			AuthKey:  getEnv("PRIMARY_LLM_AUTH_KEY", ""),
			OAuthURL: getEnv("PRIMARY_LLM_OAUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
			Scope:    getEnv("PRIMARY_LLM_SCOPE", "GIGACHAT_API_PERS"),
			BaseURL:  getEnv("PRIMARY_LLM_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
			Model:    getEnv("PRIMARY_LLM_MODEL", "GigaChat"),
			Timeout:  mustDuration(getEnv("PRIMARY_LLM_TIMEOUT", "20s")),
		},
		SecondaryProvider: ProviderConfig{
			Name:     "secondary",
			AuthKey:  getEnv("SECONDARY_LLM_AUTH_KEY", ""),
			OAuthURL: getEnv("SECONDARY_LLM_OAUTH_URL", ""),
			Scope:    getEnv("SECONDARY_LLM_SCOPE", ""),
			BaseURL:  getEnv("SECONDARY_LLM_BASE_URL", ""),
			Model:    getEnv("SECONDARY_LLM_MODEL", ""),
			Timeout:  mustDuration(getEnv("SECONDARY_LLM_TIMEOUT", "30s")),
		},

		SimilarityThreshold: mustFloat(getEnv("SIMILARITY_THRESHOLD", "0.55")),
		ParseCacheTTL:       mustDuration(getEnv("PARSE_CACHE_TTL", "5m")),

		BotAPIURL:        getEnv("BOT_API_URL", ""),
		BotToken:         getEnv("BOT_TOKEN", ""),
		BotWebhookSecret: getEnv("BOT_WEBHOOK_SECRET", ""),
		ManagerChatID:    mustInt64(getEnv("MANAGER_CHAT_ID", "0")),

		ERPBaseURL:      getEnv("ERP_BASE_URL", ""),
		ERPUsername:     getEnv("ERP_USERNAME", ""),
		ERPPassword:     getEnv("ERP_PASSWORD", ""),
		ERPWebhookToken: getEnv("ERP_WEBHOOK_TOKEN", ""),
		ERPSyncInterval: mustDuration(getEnv("ERP_SYNC_INTERVAL", "10m")),
		ERPEnabled:      strings.EqualFold(getEnv("ERP_ENABLED", "false"), "true"),

		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),

		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketImportArchive: getEnv("MINIO_BUCKET_IMPORT_ARCHIVE", "catalog-import-archive"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if cfg.ERPEnabled && cfg.ERPBaseURL == "" {
		return nil, fmt.Errorf("ERP_BASE_URL is required when ERP_ENABLED is true")
	}
	if cfg.SecondaryProvider.Configured() && cfg.SecondaryProvider.BaseURL == "" {
		return nil, fmt.Errorf("SECONDARY_LLM_BASE_URL is required when the secondary provider has a key")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string      { return c.DatabaseURL }
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetJWTAccessSecret() string  { return c.JWTAccessSecret }
func (c *Config) GetJWTRefreshSecret() string { return c.JWTRefreshSecret }

func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetPrimaryProvider() ProviderConfig   { return c.PrimaryProvider }
func (c *Config) GetSecondaryProvider() ProviderConfig { return c.SecondaryProvider }
func (c *Config) GetSimilarityThreshold() float64      { return c.SimilarityThreshold }
func (c *Config) GetParseCacheTTL() time.Duration      { return c.ParseCacheTTL }

func (c *Config) GetBotAPIURL() string        { return c.BotAPIURL }
func (c *Config) GetBotToken() string         { return c.BotToken }
func (c *Config) GetBotWebhookSecret() string { return c.BotWebhookSecret }
func (c *Config) GetManagerChatID() int64     { return c.ManagerChatID }

func (c *Config) GetERPBaseURL() string            { return c.ERPBaseURL }
func (c *Config) GetERPUsername() string           { return c.ERPUsername }
func (c *Config) GetERPPassword() string           { return c.ERPPassword }
func (c *Config) GetERPWebhookToken() string       { return c.ERPWebhookToken }
func (c *Config) GetERPSyncInterval() time.Duration { return c.ERPSyncInterval }
func (c *Config) IsERPEnabled() bool               { return c.ERPEnabled }

func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetMinIOEndpoint() string            { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string           { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string           { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketImportArchive() string { return c.MinioBucketImportArchive }

// IsMinIOEnabled reports whether MinIO storage is configured.
func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

func mustInt64(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
