package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	// CORSOrigins is the comma separated allow list; empty allows any origin.
	CORSOrigins []string

	DB        DatabaseConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Mail      MailConfig
	TextGen   TextGenConfig
	Estimate  EstimateConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Admin     AdminSeedConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// CatalogTTL bounds how long a cached priced catalog lives.
	CatalogTTL time.Duration
}

// WorkerConfig contains configuration for the estimate email worker.
type WorkerConfig struct {
	EstimateEnabled  bool
	EstimateInterval time.Duration
	// EstimateConcurrency is the number of submissions processed in parallel
	// within one sweep.
	EstimateConcurrency int
	// EstimateLockTTL is how long the cross-process sweep lock is held at most.
	EstimateLockTTL time.Duration
}

// MailConfig contains SMTP parameters for outbound estimate emails.
type MailConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	ReplyTo   string
	SSL       bool
	Timeout   time.Duration
}

// TextGenConfig contains the OpenAI-compatible text generation endpoint.
// An empty APIKey disables generation and every email uses the fallback body.
type TextGenConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// EstimateConfig contains scheduling and content parameters of estimate emails.
type EstimateConfig struct {
	DelayMin       time.Duration
	DelayMax       time.Duration
	MaxAttempts    int
	ClaimTTL       time.Duration
	Subject        string
	ConsultantName string
	ContactPhone   string
	ContactHours   string
	WebsiteURL     string
}

// LogConfig contains logger output parameters.
type LogConfig struct {
	Level     string
	File      string
	MaxSizeMB int
	MaxAgeDay int
}

// RateLimitConfig caps requests per client IP and minute; 0 disables a limit.
type RateLimitConfig struct {
	SubmissionsPerMinute int
	LoginsPerMinute      int
}

// AdminSeedConfig creates the first admin account at boot when Email is set.
type AdminSeedConfig struct {
	Email    string
	Password string
	Name     string
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", ""))

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Mail (SMTP)
	cfg.Mail = MailConfig{
		Enabled:   getEnvBool("MAIL_ENABLED", true),
		Host:      getEnv("SMTP_HOST", ""),
		Port:      getEnvInt("SMTP_PORT", 587),
		Username:  getEnv("SMTP_USERNAME", ""),
		Password:  getEnv("SMTP_PASSWORD", ""),
		FromEmail: getEnv("MAIL_FROM_EMAIL", ""),
		FromName:  getEnv("MAIL_FROM_NAME", "Surgery Quote"),
		ReplyTo:   getEnv("MAIL_REPLY_TO", ""),
		SSL:       getEnvBool("SMTP_SSL", false),
	}

	// Text generation (OpenAI-compatible)
	cfg.TextGen = TextGenConfig{
		BaseURL:     getEnv("TEXTGEN_BASE_URL", "https://api.openai.com/v1"),
		APIKey:      getEnv("TEXTGEN_API_KEY", ""),
		Model:       getEnv("TEXTGEN_MODEL", "gpt-4o-mini"),
		Temperature: getEnvFloat("TEXTGEN_TEMPERATURE", 0.7),
		MaxTokens:   getEnvInt("TEXTGEN_MAX_TOKENS", 900),
	}

	// Estimate email content
	cfg.Estimate = EstimateConfig{
		MaxAttempts:    getEnvInt("ESTIMATE_MAX_ATTEMPTS", 5),
		Subject:        getEnv("ESTIMATE_SUBJECT", "Η εκτίμηση κόστους για την επέμβασή σας"),
		ConsultantName: getEnv("ESTIMATE_CONSULTANT_NAME", ""),
		ContactPhone:   getEnv("ESTIMATE_CONTACT_PHONE", ""),
		ContactHours:   getEnv("ESTIMATE_CONTACT_HOURS", "Δευτέρα - Παρασκευή, 09:00 - 18:00"),
		WebsiteURL:     getEnv("ESTIMATE_WEBSITE_URL", ""),
	}

	// Logging
	cfg.Log = LogConfig{
		Level:     getEnv("LOG_LEVEL", ""),
		File:      getEnv("LOG_FILE", ""),
		MaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxAgeDay: getEnvInt("LOG_MAX_AGE_DAYS", 14),
	}

	cfg.RateLimit = RateLimitConfig{
		SubmissionsPerMinute: getEnvInt("SUBMISSION_RATE_LIMIT", 10),
		LoginsPerMinute:      getEnvInt("LOGIN_RATE_LIMIT", 5),
	}

	cfg.Admin = AdminSeedConfig{
		Email:    getEnv("ADMIN_EMAIL", ""),
		Password: getEnv("ADMIN_PASSWORD", ""),
		Name:     getEnv("ADMIN_NAME", "Administrator"),
	}

	cfg.Worker.EstimateEnabled = getEnvBool("ESTIMATE_WORKER_ENABLED", true)
	cfg.Worker.EstimateConcurrency = getEnvInt("ESTIMATE_CONCURRENCY", 4)

	// Durations
	var err error
	if cfg.Worker.EstimateInterval, err = parseDurationEnv("ESTIMATE_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid ESTIMATE_SWEEP_INTERVAL: %w", err)
	}
	if cfg.Worker.EstimateLockTTL, err = parseDurationEnv("ESTIMATE_LOCK_TTL", "4m"); err != nil {
		return nil, fmt.Errorf("invalid ESTIMATE_LOCK_TTL: %w", err)
	}
	if cfg.Redis.CatalogTTL, err = parseDurationEnv("CATALOG_CACHE_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.Mail.Timeout, err = parseDurationEnv("MAIL_TIMEOUT", "20s"); err != nil {
		return nil, fmt.Errorf("invalid MAIL_TIMEOUT: %w", err)
	}
	if cfg.TextGen.Timeout, err = parseDurationEnv("TEXTGEN_TIMEOUT", "8s"); err != nil {
		return nil, fmt.Errorf("invalid TEXTGEN_TIMEOUT: %w", err)
	}
	if cfg.Estimate.DelayMin, err = parseDurationEnv("ESTIMATE_DELAY_MIN", "60m"); err != nil {
		return nil, fmt.Errorf("invalid ESTIMATE_DELAY_MIN: %w", err)
	}
	if cfg.Estimate.DelayMax, err = parseDurationEnv("ESTIMATE_DELAY_MAX", "120m"); err != nil {
		return nil, fmt.Errorf("invalid ESTIMATE_DELAY_MAX: %w", err)
	}
	if cfg.Estimate.ClaimTTL, err = parseDurationEnv("ESTIMATE_CLAIM_TTL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid ESTIMATE_CLAIM_TTL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	if c.Estimate.DelayMin <= 0 || c.Estimate.DelayMax < c.Estimate.DelayMin {
		return errors.New("ESTIMATE_DELAY_MIN must be > 0 and <= ESTIMATE_DELAY_MAX")
	}
	if c.Worker.EstimateInterval <= 0 {
		return errors.New("ESTIMATE_SWEEP_INTERVAL must be > 0")
	}
	if c.Worker.EstimateConcurrency < 1 {
		c.Worker.EstimateConcurrency = 1
	}
	if c.Estimate.MaxAttempts < 0 {
		return errors.New("ESTIMATE_MAX_ATTEMPTS must be >= 0")
	}
	if c.Admin.Email != "" && len(c.Admin.Password) < 8 {
		return errors.New("ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.FromEmail == "") {
		return errors.New("mail configuration incomplete: set SMTP_HOST and MAIL_FROM_EMAIL or MAIL_ENABLED=false")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
