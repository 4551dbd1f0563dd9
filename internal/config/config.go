package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Queue     QueueConfig
	Catalog   CatalogConfig
	Player    PlayerConfig
	Session   SessionConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// SessionConfig holds daemon session housekeeping configuration
type SessionConfig struct {
	// MaxIdle is how long a player may go without commands before the
	// janitor closes it
	MaxIdle       time.Duration
	SweepInterval time.Duration
}

// RedisConfig holds preference store configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PrefTTL  time.Duration
}

// DatabaseConfig holds session history database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// QueueConfig holds telemetry queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// CatalogConfig holds source catalog (object storage) configuration
type CatalogConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// PlayerConfig holds playback session configuration
type PlayerConfig struct {
	Profile  string
	AutoPlay bool
	// PreferHighest picks the top discovered quality when no preference
	// survived restore filtering
	PreferHighest bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// TelemetryConfig controls which event sinks are wired
type TelemetryConfig struct {
	LogEvents bool
	Webhooks  []WebhookEndpoint
}

// WebhookEndpoint is one host-registered event receiver
type WebhookEndpoint struct {
	URL    string
	Secret string
	Events []string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimitRPS", 50)
	viper.SetDefault("server.rateLimitBurst", 100)

	// Session housekeeping defaults
	viper.SetDefault("session.maxIdle", "30m")
	viper.SetDefault("session.sweepInterval", "5m")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefTTL", "720h") // 30 days

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "playkit")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 10)
	viper.SetDefault("database.minConns", 2)

	// Queue defaults
	viper.SetDefault("queue.enabled", false)
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Catalog defaults
	viper.SetDefault("catalog.enabled", false)
	viper.SetDefault("catalog.endpoint", "localhost:9000")
	viper.SetDefault("catalog.accessKeyID", "minioadmin")
	viper.SetDefault("catalog.secretAccessKey", "minioadmin")
	viper.SetDefault("catalog.bucketName", "renditions")
	viper.SetDefault("catalog.region", "us-east-1")
	viper.SetDefault("catalog.useSSL", false)
	viper.SetDefault("catalog.urlExpiry", "6h")

	// Player defaults
	viper.SetDefault("player.profile", "default")
	viper.SetDefault("player.autoPlay", false)
	viper.SetDefault("player.preferHighest", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "playkit")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")

	// Telemetry defaults
	viper.SetDefault("telemetry.logEvents", true)
}
