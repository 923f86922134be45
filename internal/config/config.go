package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	AuthSecret      string   `mapstructure:"AUTH_SECRET"`
	BlobDir         string   `mapstructure:"BLOB_DIR"`
	DocAIBaseURL    string   `mapstructure:"DOCAI_BASE_URL"`
	DocAIAPIKey     string   `mapstructure:"DOCAI_API_KEY"`
	DocAITimeoutSec int      `mapstructure:"DOCAI_TIMEOUT_SECONDS"`
	MaxPDFBytes     int64    `mapstructure:"MAX_PDF_BYTES"`
	MaxImageBytes   int64    `mapstructure:"MAX_IMAGE_BYTES"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BLOB_DIR", "./blobs")
	v.SetDefault("DOCAI_TIMEOUT_SECONDS", 60)
	v.SetDefault("MAX_PDF_BYTES", 20*1024*1024)
	v.SetDefault("MAX_IMAGE_BYTES", 10*1024*1024)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("BLOB_DIR")
	v.BindEnv("DOCAI_BASE_URL")
	v.BindEnv("DOCAI_API_KEY")
	v.BindEnv("DOCAI_TIMEOUT_SECONDS")
	v.BindEnv("MAX_PDF_BYTES")
	v.BindEnv("MAX_IMAGE_BYTES")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: All requests are treated as an authenticated dev user.")
		log.Println("WARNING: Do NOT use this configuration in production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// DocAITimeout returns the per-call timeout for the document-understanding
// capability.
func (c *Config) DocAITimeout() time.Duration {
	if c.DocAITimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.DocAITimeoutSec) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// a real document-understanding endpoint and an auth secret are required so
// the service never silently falls back to the built-in stub.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.DocAIBaseURL == "" {
			return fmt.Errorf("DOCAI_BASE_URL is required when ENV is not development")
		}
		if c.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is required when ENV is not development")
		}
	}
	if c.MaxPDFBytes <= 0 {
		return fmt.Errorf("MAX_PDF_BYTES must be positive, got %d", c.MaxPDFBytes)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes)
	}
	return nil
}
