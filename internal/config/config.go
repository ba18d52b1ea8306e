package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Environment string
	ListenAddr  string

	DatabaseDriver string
	DatabaseDSN    string
	RedisAddr      string

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	TokenPepper     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	BcryptCost         int
	MaxSessionFamilies int
	TOTPIssuer         string

	SessionSweepInterval time.Duration

	APIRateLimitRPM  int
	AuthRateLimitRPM int

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// Load reads configuration from the environment. The production profile
// refuses to start without a signing secret; development generates an
// ephemeral one so a fresh checkout runs with zero setup.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("FLEETWAY_ENV", EnvDevelopment),
		ListenAddr:  getEnv("FLEETWAY_LISTEN_ADDR", ":8080"),

		DatabaseDriver: getEnv("FLEETWAY_DB_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("FLEETWAY_DB_DSN", "fleetway.db"),
		RedisAddr:      getEnv("FLEETWAY_REDIS_ADDR", ""),

		JWTSecret:       getEnv("FLEETWAY_JWT_SECRET", ""),
		JWTIssuer:       getEnv("FLEETWAY_JWT_ISSUER", "fleetway"),
		JWTAudience:     getEnv("FLEETWAY_JWT_AUDIENCE", "fleetway"),
		TokenPepper:     getEnv("FLEETWAY_TOKEN_PEPPER", ""),
		AccessTokenTTL:  getEnvDuration("FLEETWAY_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("FLEETWAY_REFRESH_TOKEN_TTL", 7*24*time.Hour),

		BcryptCost:         getEnvInt("FLEETWAY_BCRYPT_COST", 12),
		MaxSessionFamilies: getEnvInt("FLEETWAY_MAX_SESSION_FAMILIES", 5),
		TOTPIssuer:         getEnv("FLEETWAY_TOTP_ISSUER", "Fleetway"),

		SessionSweepInterval: getEnvDuration("FLEETWAY_SESSION_SWEEP_INTERVAL", time.Hour),

		APIRateLimitRPM:  getEnvInt("FLEETWAY_API_RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM: getEnvInt("FLEETWAY_AUTH_RATE_LIMIT_RPM", 30),

		OTELMetricsEnabled:        getEnvBool("FLEETWAY_OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:         getEnvBool("FLEETWAY_OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:           getEnvBool("FLEETWAY_OTEL_LOGS_ENABLED", false),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "fleetway"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "development"),
		OTELMetricsExportInterval: getEnvDuration("FLEETWAY_OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		recordConfigLoadEvent(context.Background(), cfg.Environment, "failure", classifyConfigError(err))
		return nil, err
	}
	recordConfigLoadEvent(context.Background(), cfg.Environment, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("validate config: unknown environment %q", c.Environment)
	}
	if c.JWTSecret == "" {
		if c.Environment == EnvProduction {
			return fmt.Errorf("validate config: FLEETWAY_JWT_SECRET is required in production")
		}
		secret, err := randomHex(32)
		if err != nil {
			return fmt.Errorf("validate config: generate dev secret: %w", err)
		}
		c.JWTSecret = secret
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("validate config: FLEETWAY_JWT_SECRET must be at least 32 characters")
	}
	if c.TokenPepper == "" {
		// Peppering with the signing secret keeps single-secret deployments
		// working; a dedicated pepper is still recommended.
		c.TokenPepper = c.JWTSecret
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("validate config: token lifetimes must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("validate config: access token lifetime must be shorter than refresh token lifetime")
	}
	if c.MaxSessionFamilies < 1 {
		return fmt.Errorf("validate config: FLEETWAY_MAX_SESSION_FAMILIES must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func randomHex(bytes int) (string, error) {
	raw := make([]byte, bytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
