// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates the selected catalog source on startup so
// that a misconfigured storefront fails fast instead of rendering an empty grid.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/joho/godotenv"
)

// Catalog source identifiers accepted by CATALOG_SOURCE.
const (
	SourceProbe    = "probe"
	SourcePostgres = "postgres"
	SourceSupabase = "supabase"
)

// Asset backends accepted by ASSET_BACKEND for the probe source.
const (
	AssetBackendFS   = "fs"
	AssetBackendHTTP = "http"
	AssetBackendS3   = "s3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Supabase  SupabaseConfig
	OAuth     OAuthConfig
	Catalog   CatalogConfig
	Assets    AssetConfig
	Session   SessionConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port        string
	Environment string
	BaseURL     string // Public URL of the storefront, used for OAuth redirects

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For header
	// is honoured. Empty means the peer address is always the client.
	TrustedProxies []string
}

// DatabaseConfig holds PostgreSQL configuration. Only required when the
// catalog source is "postgres".
type DatabaseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	MaxConns int
}

// RedisConfig holds Redis configuration for the session store and rate limiter.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// SupabaseConfig holds the hosted data service endpoint. The key is the
// public anon key and ends up in the client config script.
type SupabaseConfig struct {
	URL string
	Key string
}

// OAuthConfig holds Google identity configuration. ClientSecret is optional:
// without it only the Identity Services credential callback is enabled.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// CatalogConfig selects and tunes the catalog loading strategy.
type CatalogConfig struct {
	Source          string
	DefaultCategory string
	MaxProbe        int           // Upper bound N of the probe loop
	PathTemplate    string        // fmt template with one %d verb
	LoadTimeout     time.Duration // Bound on a single detached catalog load
	PageIdleTTL     time.Duration // Idle page sessions are discarded after this
}

// AssetConfig describes where the probe loop looks for product images.
type AssetConfig struct {
	Backend string
	Root    string // Local directory served at /assets (fs backend)
	BaseURL string // Public base URL for http and s3 backends

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// SessionConfig holds the user session flash settings.
type SessionConfig struct {
	MaxAge time.Duration // Sessions older than this are logged out on load
}

// CORSConfig holds Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration for the auth routes.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// Load reads and validates configuration from environment variables.
// A .env file is loaded if present and ignored otherwise.
//
// Required environment variables depend on CATALOG_SOURCE:
//   - postgres: POSTGRES_PASSWORD
//   - supabase: SUPABASE_URL, SUPABASE_KEY
//   - probe with ASSET_BACKEND=s3: ASSET_S3_BUCKET
//
// GOOGLE_CLIENT_ID is always required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	googleClientID, err := getEnvRequired("GOOGLE_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENV", "development"),
			BaseURL:     baseURL,

			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseFromEnv(),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),
		},
		Supabase: SupabaseConfig{
			URL: getEnv("SUPABASE_URL", ""),
			Key: getEnv("SUPABASE_KEY", ""),
		},
		OAuth: OAuthConfig{
			ClientID:     googleClientID,
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("AUTH_REDIRECT_URL", strings.TrimRight(baseURL, "/")+"/auth/google/oauth-callback"),
		},
		Catalog: CatalogConfig{
			Source:          getEnv("CATALOG_SOURCE", SourceProbe),
			DefaultCategory: getEnv("CATALOG_DEFAULT_CATEGORY", "women"),
			MaxProbe:        getEnvAsInt("CATALOG_MAX_PROBE", 50),
			PathTemplate:    getEnv("CATALOG_PATH_TEMPLATE", "assets/products/%d.png"),
			LoadTimeout:     getEnvAsDuration("CATALOG_LOAD_TIMEOUT", 30*time.Second),
			PageIdleTTL:     getEnvAsDuration("PAGE_IDLE_TTL", 30*time.Minute),
		},
		Assets: AssetConfig{
			Backend:     getEnv("ASSET_BACKEND", AssetBackendFS),
			Root:        getEnv("ASSET_ROOT", "."),
			BaseURL:     getEnv("ASSET_BASE_URL", ""),
			S3Bucket:    getEnv("ASSET_S3_BUCKET", ""),
			S3Region:    getEnv("ASSET_S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("ASSET_S3_ENDPOINT", ""),
			S3AccessKey: getEnv("ASSET_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("ASSET_S3_SECRET_KEY", ""),
		},
		Session: SessionConfig{
			MaxAge: getEnvAsDuration("SESSION_MAX_AGE", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{baseURL}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is complete for the selected
// catalog source and asset backend.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}
	if _, err := strconv.Atoi(c.Redis.Port); err != nil {
		return fmt.Errorf("redis port must be a valid integer: %w", err)
	}
	if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if _, err := utils.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("google client ID is required")
	}
	if c.OAuth.ClientSecret != "" {
		if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
			return fmt.Errorf("invalid OAuth redirect URL: %w", err)
		}
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}

	switch c.Catalog.DefaultCategory {
	case "men", "women":
	default:
		return fmt.Errorf("default category must be men or women, got %q", c.Catalog.DefaultCategory)
	}

	switch c.Catalog.Source {
	case SourceProbe:
		return c.validateProbe()
	case SourcePostgres:
		if _, err := strconv.Atoi(c.Database.Port); err != nil {
			return fmt.Errorf("database port must be a valid integer: %w", err)
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required for the postgres catalog source")
		}
	case SourceSupabase:
		if _, err := url.ParseRequestURI(c.Supabase.URL); err != nil {
			return fmt.Errorf("invalid supabase URL: %w", err)
		}
		if c.Supabase.Key == "" {
			return fmt.Errorf("supabase key is required for the supabase catalog source")
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	return nil
}

func (c *Config) validateProbe() error {
	if c.Catalog.MaxProbe < 1 {
		return fmt.Errorf("catalog max probe must be at least 1")
	}
	if strings.Count(c.Catalog.PathTemplate, "%d") != 1 {
		return fmt.Errorf("catalog path template must contain exactly one %%d verb")
	}

	switch c.Assets.Backend {
	case AssetBackendFS:
		dir, _, _ := strings.Cut(strings.TrimLeft(c.Catalog.PathTemplate, "/"), "/")
		if strings.Contains(dir, "%") {
			return fmt.Errorf("catalog path template must start with a directory for the fs asset backend")
		}
	case AssetBackendHTTP:
		if _, err := url.ParseRequestURI(c.Assets.BaseURL); err != nil {
			return fmt.Errorf("invalid asset base URL: %w", err)
		}
	case AssetBackendS3:
		if c.Assets.S3Bucket == "" {
			return fmt.Errorf("asset bucket is required for the s3 asset backend")
		}
	default:
		return fmt.Errorf("unknown asset backend %q", c.Assets.Backend)
	}
	return nil
}

// DatabaseFromEnv reads only the POSTGRES_* settings. storefrontctl uses it
// to seed the catalog without the rest of the server configuration.
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		Database: getEnv("POSTGRES_DB", "storefront"),
		User:     getEnv("POSTGRES_USER", "storefront"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 10),
	}
}

// IsProduction reports whether secure cookie settings should be used.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// DSN returns the PostgreSQL connection string for the lib/pq driver.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database,
	)
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired retrieves a required environment variable.
func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an integer, falling back
// to defaultValue when unset or unparsable.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration
// ("300ms", "1.5h", ...), falling back to defaultValue.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice parses a comma-separated environment variable.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
