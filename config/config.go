package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	HTTPAddr        string
	HTTPAccessLog   bool
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	// Location is the reference timezone for labels, "today" and hours.
	Location        *time.Location
	MonitorInterval time.Duration

	SQLitePath         string
	SQLiteDSN          string
	SQLiteMaxOpenConns int

	ThresholdBackend  string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisAlertChannel string

	// MQTTBroker empty disables MQTT entirely.
	MQTTBroker     string
	MQTTPort       int
	MQTTClientID   string
	MQTTTopic      string
	MQTTAlertTopic string

	IngestWorkers int
	IngestBuffer  int
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c Config) NeedsRedis() bool {
	return c.ThresholdBackend == BackendRedis || c.RedisAlertChannel != ""
}

func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadFromEnv() (Config, error) {
	var cfg Config
	var err error

	cfg.AppEnv = envOr("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	if cfg.LogLevel, err = parseLogLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":5000")
	if cfg.HTTPAccessLog, err = envBool("HTTP_ACCESS_LOG", false); err != nil {
		return Config{}, err
	}
	cfg.CORSOrigins = splitList(envOr("CORS_ALLOWED_ORIGINS", "*"))
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}

	tz := envOr("TIMEZONE", "Europe/Helsinki")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	if cfg.MonitorInterval, err = envDuration("MONITOR_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MonitorInterval <= 0 {
		return Config{}, fmt.Errorf("invalid MONITOR_INTERVAL %s: must be positive", cfg.MonitorInterval)
	}

	cfg.SQLitePath = envOr("SQLITE_PATH", "data/readings.db")
	cfg.SQLiteDSN = strings.TrimSpace(os.Getenv("SQLITE_DSN"))
	if cfg.SQLiteMaxOpenConns, err = envInt("SQLITE_MAX_OPEN_CONNS", 4); err != nil {
		return Config{}, err
	}

	cfg.ThresholdBackend = envOr("THRESHOLD_BACKEND", BackendRedis)
	switch cfg.ThresholdBackend {
	case BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("invalid THRESHOLD_BACKEND %q (allowed: redis, memory)", cfg.ThresholdBackend)
	}
	cfg.RedisAddr = envOr("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	// The alert channel only defaults on when Redis is already required.
	if cfg.ThresholdBackend == BackendRedis {
		cfg.RedisAlertChannel = "alert"
	}
	if v, ok := os.LookupEnv("REDIS_ALERT_CHANNEL"); ok {
		cfg.RedisAlertChannel = strings.TrimSpace(v)
	}

	cfg.MQTTBroker = strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if cfg.MQTTPort, err = envInt("MQTT_PORT", 1883); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort <= 0 || cfg.MQTTPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d", cfg.MQTTPort)
	}
	cfg.MQTTClientID = envOr("MQTT_CLIENT_ID", "climate-monitor")
	cfg.MQTTTopic = envOr("MQTT_TOPIC", "sensors/readings")
	cfg.MQTTAlertTopic = envOr("MQTT_ALERT_TOPIC", "sensors/alerts")

	if cfg.IngestWorkers, err = envInt("INGEST_WORKERS", 0); err != nil {
		return Config{}, err
	}
	if cfg.IngestBuffer, err = envInt("INGEST_BUFFER", 1000); err != nil {
		return Config{}, err
	}
	if cfg.IngestBuffer <= 0 {
		return Config{}, fmt.Errorf("invalid INGEST_BUFFER %d: must be positive", cfg.IngestBuffer)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
