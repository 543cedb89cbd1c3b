// Package config provides configuration loading and management for the admin API.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// godotenv.Load does not override variables that are already set, so the
// process environment always wins over .env and .env.local.
func init() {
	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the admin API.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Database connection string (PostgreSQL); empty selects the in-memory store
	NATSURL     string // NATS server URL; empty disables event streaming
	S3Endpoint  string // S3-compatible storage endpoint for published API docs
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name; empty disables doc publishing
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key

	// Token settings
	JWTSecret       string        // HMAC secret for access and refresh tokens
	JWTIssuer       string        // iss claim of issued tokens
	AccessTokenTTL  time.Duration // Lifetime of access tokens
	RefreshTokenTTL time.Duration // Lifetime of refresh tokens

	// Bootstrap staff account, created at startup when both are set
	SuperuserUsername string
	SuperuserPassword string

	// Pagination
	DefaultPageSize int // Page size when the client does not ask for one
	MaxPageSize     int // Upper bound for page_size

	// PublicBaseURL overrides the scheme and host used in hypermedia links
	PublicBaseURL string

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort            = "8080"
	defaultS3Region        = "us-east-1"
	defaultEnv             = "dev"
	defaultJWTIssuer       = "awadmin"
	defaultAccessTokenTTL  = 5 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour
	defaultPageSize        = 10
	defaultMaxPageSize     = 100
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// Returns an error if required parameters are missing or invalid.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("ADMIN_ENV", defaultEnv),
		Port:              getEnv("ADMIN_PORT", defaultPort),
		DatabaseDSN:       os.Getenv("ADMIN_DB_DSN"),
		NATSURL:           os.Getenv("ADMIN_NATS_URL"),
		S3Endpoint:        os.Getenv("ADMIN_S3_ENDPOINT"),
		S3Region:          getEnv("ADMIN_S3_REGION", defaultS3Region),
		S3Bucket:          os.Getenv("ADMIN_S3_BUCKET"),
		S3AccessKey:       os.Getenv("ADMIN_S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("ADMIN_S3_SECRET_KEY"),
		JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
		JWTIssuer:         getEnv("ADMIN_JWT_ISSUER", defaultJWTIssuer),
		SuperuserUsername: os.Getenv("ADMIN_SUPERUSER_USERNAME"),
		SuperuserPassword: os.Getenv("ADMIN_SUPERUSER_PASSWORD"),
		PublicBaseURL:     strings.TrimRight(os.Getenv("ADMIN_PUBLIC_BASE_URL"), "/"),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ADMIN_ACCESS_TOKEN_TTL", defaultAccessTokenTTL); err != nil {
		return cfg, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("ADMIN_REFRESH_TOKEN_TTL", defaultRefreshTokenTTL); err != nil {
		return cfg, err
	}
	if cfg.DefaultPageSize, err = getInt("ADMIN_DEFAULT_PAGE_SIZE", defaultPageSize); err != nil {
		return cfg, err
	}
	if cfg.MaxPageSize, err = getInt("ADMIN_MAX_PAGE_SIZE", defaultMaxPageSize); err != nil {
		return cfg, err
	}

	if corsOrigins, exists := os.LookupEnv("ADMIN_CORS_ALLOWED_ORIGINS"); exists {
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	// Validate required parameters
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize < cfg.DefaultPageSize {
		return cfg, fmt.Errorf("page sizes must satisfy 0 < ADMIN_DEFAULT_PAGE_SIZE (%d) <= ADMIN_MAX_PAGE_SIZE (%d)", cfg.DefaultPageSize, cfg.MaxPageSize)
	}
	if cfg.PublicBaseURL != "" {
		u, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return cfg, fmt.Errorf("ADMIN_PUBLIC_BASE_URL must be an absolute URL, got %q", cfg.PublicBaseURL)
		}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
