package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	JWTSigningKey  string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BlobBackend    string        `mapstructure:"BLOB_BACKEND"`
	S3Bucket       string        `mapstructure:"S3_BUCKET"`
	S3Prefix       string        `mapstructure:"S3_PREFIX"`
	AWSRegion      string        `mapstructure:"AWS_REGION"`
	MaxUploadSize  string        `mapstructure:"MAX_UPLOAD_SIZE"`
	TemplateTTL    time.Duration `mapstructure:"TEMPLATE_CACHE_TTL"`
	// PDFFont and PDFBoldFont are TrueType files for exported records. When
	// unset the built-in cp1252 fonts are used.
	PDFFont        string        `mapstructure:"PDF_FONT"`
	PDFBoldFont    string        `mapstructure:"PDF_BOLD_FONT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BLOB_BACKEND", "S3_BUCKET",
	"S3_PREFIX", "AWS_REGION", "MAX_UPLOAD_SIZE", "TEMPLATE_CACHE_TTL",
	"PDF_FONT", "PDF_BOLD_FONT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "medportal")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("S3_PREFIX", "portal")
	v.SetDefault("AWS_REGION", "eu-central-1")
	v.SetDefault("MAX_UPLOAD_SIZE", "50M")
	v.SetDefault("TEMPLATE_CACHE_TTL", "10m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

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

	if cfg.IsDev() && cfg.JWTSigningKey == "" {
		log.Warn().Msg("JWT_SIGNING_KEY is not set, using an insecure development key. Do NOT run like this in production.")
		cfg.JWTSigningKey = DevSigningKey
	}

	return cfg, nil
}

// DevSigningKey signs tokens in development when no key is configured.
const DevSigningKey = "medportal-development-signing-key"

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production the
// signing key must be set and at least 32 bytes long. The s3 backend needs a
// bucket and region.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSigningKey == "" || c.JWTSigningKey == DevSigningKey {
			return fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		if len(c.JWTSigningKey) < 32 {
			return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes, got %d", len(c.JWTSigningKey))
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	switch c.BlobBackend {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is \"s3\"")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when BLOB_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"s3\", got %q", c.BlobBackend)
	}

	if c.PDFBoldFont != "" && c.PDFFont == "" {
		return fmt.Errorf("PDF_BOLD_FONT requires PDF_FONT")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
