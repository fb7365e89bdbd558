package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	InstanceID  string

	DefaultOrgID int64
	// DefaultOwnerID receives escalations for assets with no assigned owner.
	DefaultOwnerID int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	TickInterval time.Duration

	DispatchWorkers    int
	DispatchTimeout    time.Duration
	DispatchMaxRetries int

	Email EmailConfig
	SMS   GatewayConfig
	Chat  GatewayConfig

	Cloud CloudConfig
}

// CloudConfig controls optional fleet telemetry for self-hosted
// deployments reporting to a central endpoint.
type CloudConfig struct {
	Metrics CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// GatewayConfig holds settings for an HTTP message gateway (SMS, WhatsApp).
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "renewd"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		InstanceID:     getenv("INSTANCE_ID", ""),
		DefaultOrgID:   getenvInt64("DEFAULT_ORG", 0),
		DefaultOwnerID: getenvInt64("DEFAULT_OWNER", 0),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "renewd"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		TickInterval: getenvDuration("TICK_INTERVAL", 15*time.Minute),

		DispatchWorkers:    int(getenvInt64("DISPATCH_WORKERS", 10)),
		DispatchTimeout:    getenvDuration("DISPATCH_TIMEOUT", 10*time.Second),
		DispatchMaxRetries: int(getenvInt64("DISPATCH_MAX_RETRIES", 2)),

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "noreply@agency.example"),
		},
		SMS: GatewayConfig{
			BaseURL: getenv("SMS_GATEWAY_URL", ""),
			APIKey:  getenv("SMS_GATEWAY_API_KEY", ""),
			Sender:  getenv("SMS_SENDER", ""),
		},
		Chat: GatewayConfig{
			BaseURL: getenv("WHATSAPP_GATEWAY_URL", ""),
			APIKey:  getenv("WHATSAPP_GATEWAY_API_KEY", ""),
			Sender:  getenv("WHATSAPP_SENDER", ""),
		},

		Cloud: CloudConfig{
			Metrics: CloudMetricsConfig{
				Enabled:   getenv("CLOUD_METRICS_ENABLED", "") == "true",
				Exporter:  getenv("CLOUD_METRICS_EXPORTER", "prometheus_remote_write"),
				Endpoint:  getenv("CLOUD_METRICS_ENDPOINT", ""),
				AuthToken: getenv("CLOUD_METRICS_AUTH_TOKEN", ""),
			},
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
