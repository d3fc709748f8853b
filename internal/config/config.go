package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	MirrorNone     = "none"
	MirrorSupabase = "supabase"
	MirrorMinio    = "minio"
)

type Config struct {
	// Server
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// Database
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`

	// Auth
	JWTSecret    string `yaml:"jwt_secret"`
	WebhookToken string `yaml:"webhook_token"`

	// Providers
	RunwayAPIKey     string        `yaml:"runway_api_key"`
	RunwayBaseURL    string        `yaml:"runway_base_url"`
	RunwayVersion    string        `yaml:"runway_version"`
	PikaAPIKey       string        `yaml:"pika_api_key"`
	PikaBaseURL      string        `yaml:"pika_base_url"`
	ProviderTimeout  time.Duration `yaml:"provider_timeout"`
	ProviderFailover bool          `yaml:"provider_failover"`

	// Reconciler
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"`
	PendingGracePeriod time.Duration `yaml:"pending_grace_period"`
	MaxPollFailures    int           `yaml:"max_poll_failures"`
	MaxConcurrentPolls int           `yaml:"max_concurrent_polls"`

	// Media mirror
	MirrorBackend         string `yaml:"mirror_backend"`
	SupabaseURL           string `yaml:"supabase_url"`
	SupabaseKey           string `yaml:"supabase_key"`
	SupabaseStorageBucket string `yaml:"supabase_storage_bucket"`
	MinioEndpoint         string `yaml:"minio_endpoint"`
	MinioAccessKey        string `yaml:"minio_access_key"`
	MinioSecretKey        string `yaml:"minio_secret_key"`
	MinioBucket           string `yaml:"minio_bucket"`
	MinioUseSSL           bool   `yaml:"minio_use_ssl"`
	MinioPublicURL        string `yaml:"minio_public_url"`
}

func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",

		DatabaseDriver: "postgres",

		RunwayBaseURL:   "https://api.runwayml.com",
		RunwayVersion:   "2024-11-06",
		PikaBaseURL:     "https://api.pika.art",
		ProviderTimeout: 30 * time.Second,

		ReconcileInterval:  10 * time.Second,
		PendingGracePeriod: 2 * time.Minute,
		MaxPollFailures:    5,
		MaxConcurrentPolls: 8,

		MirrorBackend:         MirrorNone,
		SupabaseStorageBucket: "scene-videos",
		MinioBucket:           "scene-videos",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and then environment variables, in that order.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML file; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.WebhookToken = getEnv("WEBHOOK_TOKEN", c.WebhookToken)

	c.RunwayAPIKey = getEnv("RUNWAY_API_KEY", c.RunwayAPIKey)
	c.RunwayBaseURL = getEnv("RUNWAY_API_BASE_URL", c.RunwayBaseURL)
	c.RunwayVersion = getEnv("RUNWAY_API_VERSION", c.RunwayVersion)
	c.PikaAPIKey = getEnv("PIKA_API_KEY", c.PikaAPIKey)
	c.PikaBaseURL = getEnv("PIKA_API_BASE_URL", c.PikaBaseURL)

	c.MirrorBackend = getEnv("MIRROR_BACKEND", c.MirrorBackend)
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseKey = getEnv("SUPABASE_SERVICE_KEY", c.SupabaseKey)
	c.SupabaseStorageBucket = getEnv("SUPABASE_STORAGE_BUCKET", c.SupabaseStorageBucket)
	c.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getEnv("MINIO_BUCKET", c.MinioBucket)
	c.MinioPublicURL = getEnv("MINIO_PUBLIC_URL", c.MinioPublicURL)

	var err error
	if c.ProviderTimeout, err = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout); err != nil {
		return err
	}
	if c.ProviderFailover, err = getEnvBool("PROVIDER_FAILOVER", c.ProviderFailover); err != nil {
		return err
	}
	if c.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", c.ReconcileInterval); err != nil {
		return err
	}
	if c.PendingGracePeriod, err = getEnvDuration("PENDING_GRACE_PERIOD", c.PendingGracePeriod); err != nil {
		return err
	}
	if c.MaxPollFailures, err = getEnvInt("MAX_POLL_FAILURES", c.MaxPollFailures); err != nil {
		return err
	}
	if c.MaxConcurrentPolls, err = getEnvInt("MAX_CONCURRENT_POLLS", c.MaxConcurrentPolls); err != nil {
		return err
	}
	if c.MinioUseSSL, err = getEnvBool("MINIO_USE_SSL", c.MinioUseSSL); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	// A pending task younger than one provider call may still be mid-dispatch.
	if c.PendingGracePeriod <= c.ProviderTimeout {
		return fmt.Errorf("PENDING_GRACE_PERIOD (%s) must exceed PROVIDER_TIMEOUT (%s)", c.PendingGracePeriod, c.ProviderTimeout)
	}
	if c.MaxPollFailures < 1 {
		return fmt.Errorf("MAX_POLL_FAILURES must be at least 1")
	}
	if c.MaxConcurrentPolls < 1 {
		return fmt.Errorf("MAX_CONCURRENT_POLLS must be at least 1")
	}

	switch strings.ToLower(c.MirrorBackend) {
	case "", MirrorNone:
	case MirrorSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase mirror")
		}
	case MirrorMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio mirror")
		}
	default:
		return fmt.Errorf("unknown MIRROR_BACKEND %q", c.MirrorBackend)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
