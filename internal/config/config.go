package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	ClinicTimezone    string        `mapstructure:"CLINIC_TIMEZONE"`
	StorageBackend    string        `mapstructure:"STORAGE_BACKEND"`
	StorageSigningKey string        `mapstructure:"STORAGE_SIGNING_KEY"`
	SignedURLTTL      time.Duration `mapstructure:"SIGNED_URL_TTL"`
	PublicBaseURL     string        `mapstructure:"PUBLIC_BASE_URL"`
	DocumentURL       string        `mapstructure:"DOCUMENT_ENDPOINT_URL"`
	DocumentTimeout   time.Duration `mapstructure:"DOCUMENT_TIMEOUT"`
	StatusDebounce    time.Duration `mapstructure:"STATUS_DEBOUNCE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CLINIC_TIMEZONE", "Local")
	v.SetDefault("STORAGE_BACKEND", "postgres")
	v.SetDefault("SIGNED_URL_TTL", "3600s")
	v.SetDefault("DOCUMENT_TIMEOUT", "30s")
	v.SetDefault("STATUS_DEBOUNCE", "300ms")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CLINIC_TIMEZONE",
		"STORAGE_BACKEND", "STORAGE_SIGNING_KEY", "SIGNED_URL_TTL", "PUBLIC_BASE_URL",
		"DOCUMENT_ENDPOINT_URL", "DOCUMENT_TIMEOUT", "STATUS_DEBOUNCE",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.DocumentURL == "" {
		cfg.DocumentURL = "http://localhost:" + cfg.Port + "/api/export/appointment"
	}
	if cfg.StorageSigningKey == "" && cfg.IsDev() {
		cfg.StorageSigningKey = "development-storage-signing-key-0000"
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); every request is treated as an admin.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Appointment date and time fields are
// merged in this location, and export date filters count calendar days in it.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" || c.ClinicTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if !c.IsDev() && len(c.StorageSigningKey) < 32 {
		return fmt.Errorf("STORAGE_SIGNING_KEY must be at least 32 bytes outside development")
	}
	switch c.StorageBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"postgres\" or \"memory\", got %q", c.StorageBackend)
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
