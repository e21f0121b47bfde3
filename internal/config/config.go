package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Server        ServerConfig
	OAuth         OAuthConfig
	Slack         SlackConfig
	Storage       StorageConfig
	Billing       BillingConfig
	Giveaway      GiveawayConfig
	Inventory     InventoryConfig
	Realtime      RealtimeConfig
	Metrics       MetricsConfig
	SelfHosted    bool
	EncryptionKey string //nolint:gosec // G117: hex-encoded AES-256 key for tenant credentials
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64 // requests per second per tenant
	RateBurst    int
}

// OAuthConfig holds staff OAuth login settings. A provider is enabled when its
// client ID is set.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string //nolint:gosec // G117: OAuth client secret
	GitHubClientID     string
	GitHubClientSecret string //nolint:gosec // G117: OAuth client secret
	RedirectBaseURL    string
}

// SlackConfig holds the platform Slack bot used when a tenant has no token of its own.
type SlackConfig struct {
	BotToken string
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS; set for MinIO and friends
	AccessKeyID     string
	SecretAccessKey string //nolint:gosec // G117: storage credentials
	UsePathStyle    bool
	PresignTTL      time.Duration
}

// BillingConfig holds platform billing settings.
type BillingConfig struct {
	DefaultPlan     string
	InvoiceSchedule string
}

// GiveawayConfig holds the scheduled draw settings.
type GiveawayConfig struct {
	DrawSchedule string
}

// InventoryConfig holds the low-stock digest settings.
type InventoryConfig struct {
	DigestSchedule string
}

// RealtimeConfig holds realtime subscription settings.
type RealtimeConfig struct {
	RetryDelay time.Duration
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("SHOPDESK_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("SHOPDESK_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("SHOPDESK_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("SHOPDESK_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("SHOPDESK_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("SHOPDESK_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("SHOPDESK_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimit, err := getEnvFloat("SHOPDESK_RATE_LIMIT", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("SHOPDESK_RATE_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	usePathStyle, err := getEnvBool("SHOPDESK_S3_USE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presignTTL, err := getEnvDuration("SHOPDESK_S3_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	retryDelay, err := getEnvDuration("SHOPDESK_REALTIME_RETRY_DELAY", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	metricsEnabled, err := getEnvBool("SHOPDESK_METRICS_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("SHOPDESK_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("SHOPDESK_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("SHOPDESK_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("SHOPDESK_DB_USER", "shopdesk"),
			Password: getEnv("SHOPDESK_DB_PASSWORD", ""),
			DBName:   getEnv("SHOPDESK_DB_NAME", "shopdesk_dev"),
			SSLMode:  getEnv("SHOPDESK_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("SHOPDESK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("SHOPDESK_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("SHOPDESK_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("SHOPDESK_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			RateLimit:    rateLimit,
			RateBurst:    rateBurst,
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("SHOPDESK_OAUTH_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("SHOPDESK_OAUTH_GOOGLE_CLIENT_SECRET", ""),
			GitHubClientID:     getEnv("SHOPDESK_OAUTH_GITHUB_CLIENT_ID", ""),
			GitHubClientSecret: getEnv("SHOPDESK_OAUTH_GITHUB_CLIENT_SECRET", ""),
			RedirectBaseURL:    getEnv("SHOPDESK_OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
		},
		Slack: SlackConfig{
			BotToken: getEnv("SHOPDESK_SLACK_BOT_TOKEN", ""),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("SHOPDESK_S3_BUCKET", ""),
			Region:          getEnv("SHOPDESK_S3_REGION", "us-east-1"),
			Endpoint:        getEnv("SHOPDESK_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("SHOPDESK_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SHOPDESK_S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    usePathStyle,
			PresignTTL:      presignTTL,
		},
		Billing: BillingConfig{
			DefaultPlan:     getEnv("SHOPDESK_BILLING_DEFAULT_PLAN", "free"),
			InvoiceSchedule: getEnv("SHOPDESK_BILLING_INVOICE_SCHEDULE", "0 2 1 * *"),
		},
		Giveaway: GiveawayConfig{
			DrawSchedule: getEnv("SHOPDESK_GIVEAWAY_DRAW_SCHEDULE", "@every 1m"),
		},
		Inventory: InventoryConfig{
			DigestSchedule: getEnv("SHOPDESK_INVENTORY_DIGEST_SCHEDULE", "0 8 * * *"),
		},
		Realtime: RealtimeConfig{
			RetryDelay: retryDelay,
		},
		Metrics: MetricsConfig{
			Enabled: metricsEnabled,
			Path:    getEnv("SHOPDESK_METRICS_PATH", "/metrics"),
		},
		SelfHosted:    selfHosted,
		EncryptionKey: getEnv("SHOPDESK_ENCRYPTION_KEY", ""),
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("SHOPDESK_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("SHOPDESK_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("SHOPDESK_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("SHOPDESK_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("SHOPDESK_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("SHOPDESK_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("SHOPDESK_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SHOPDESK_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SHOPDESK_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("SHOPDESK_RATE_LIMIT must be positive, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("SHOPDESK_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Storage.PresignTTL <= 0 || c.Storage.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("SHOPDESK_S3_PRESIGN_TTL must be between 1ns and 168h, got %s", c.Storage.PresignTTL)
	}
	if c.Realtime.RetryDelay <= 0 {
		return fmt.Errorf("SHOPDESK_REALTIME_RETRY_DELAY must be positive, got %s", c.Realtime.RetryDelay)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("SHOPDESK_METRICS_PATH must start with '/', got %q", c.Metrics.Path)
	}

	schedules := map[string]string{
		"SHOPDESK_BILLING_INVOICE_SCHEDULE":  c.Billing.InvoiceSchedule,
		"SHOPDESK_GIVEAWAY_DRAW_SCHEDULE":    c.Giveaway.DrawSchedule,
		"SHOPDESK_INVENTORY_DIGEST_SCHEDULE": c.Inventory.DigestSchedule,
	}
	for key, spec := range schedules {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s=%q is not a valid cron schedule: %w", key, spec, err)
		}
	}

	if c.EncryptionKey != "" {
		if _, err := c.EncryptionKeyBytes(); err != nil {
			return err
		}
	}

	return nil
}

// EncryptionKeyBytes decodes the hex encryption key into the 32 bytes the vault needs.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("SHOPDESK_ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns the connection URL in the form golang-migrate's pgx/v5 driver expects.
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
