package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "github.com/juandiegombr/daw.pi.iiava/backend/libs/config"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultPort             = "3000"
	defaultBasePath         = "/api"
	defaultExpiresInMinutes = 7 * 24 * 60
	defaultCookieName       = "token"
	defaultMQTTTopic        = "sensors/+/datapoints"
	defaultMQTTClientID     = "monitor-service"
	defaultTolerance        = 1e-9
)

// Config represents monitor service configuration loaded from YAML/env.
type Config struct {
	HTTP struct {
		Port        string   `yaml:"port" env:"MONITOR_HTTP_PORT"`
		BasePath    string   `yaml:"basePath" env:"MONITOR_HTTP_BASE_PATH"`
		CORSOrigins []string `yaml:"corsOrigins" env:"MONITOR_HTTP_CORS_ORIGINS"`
	} `yaml:"http"`
	Database struct {
		Driver      string `yaml:"driver" env:"MONITOR_DB_DRIVER"`
		DSN         string `yaml:"dsn" env:"MONITOR_POSTGRES_DSN"`
		AutoMigrate bool   `yaml:"autoMigrate" env:"MONITOR_DB_AUTO_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"MONITOR_REDIS_ADDR"`
		Password string `yaml:"password" env:"MONITOR_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"MONITOR_REDIS_DB"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret        string `yaml:"jwtSecret" env:"MONITOR_JWT_SECRET"`
		ExpiresInMinutes int    `yaml:"expiresInMinutes" env:"MONITOR_JWT_EXPIRES_MINUTES"`
		CookieName       string `yaml:"cookieName" env:"MONITOR_AUTH_COOKIE_NAME"`
		SecureCookie     bool   `yaml:"secureCookie" env:"MONITOR_AUTH_SECURE_COOKIE"`
		RequireAuth      bool   `yaml:"requireAuth" env:"MONITOR_AUTH_REQUIRED"`
	} `yaml:"auth"`
	Live struct {
		BufferSize        int           `yaml:"bufferSize" env:"MONITOR_LIVE_BUFFER_SIZE"`
		WriteTimeout      time.Duration `yaml:"writeTimeout" env:"MONITOR_LIVE_WRITE_TIMEOUT"`
		HeartbeatInterval time.Duration `yaml:"heartbeatInterval" env:"MONITOR_LIVE_HEARTBEAT_INTERVAL"`
	} `yaml:"live"`
	Alerts struct {
		EqualityTolerance float64 `yaml:"equalityTolerance" env:"MONITOR_ALERTS_EQUALITY_TOLERANCE"`
	} `yaml:"alerts"`
	MQTT struct {
		Broker   string `yaml:"broker" env:"MONITOR_MQTT_BROKER"`
		Topic    string `yaml:"topic" env:"MONITOR_MQTT_TOPIC"`
		ClientID string `yaml:"clientId" env:"MONITOR_MQTT_CLIENT_ID"`
	} `yaml:"mqtt"`
}

// Load reads configuration using the shared config loader.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = defaultPort
	cfg.HTTP.BasePath = defaultBasePath
	cfg.Database.Driver = DriverPostgres
	cfg.Auth.ExpiresInMinutes = defaultExpiresInMinutes
	cfg.Auth.CookieName = defaultCookieName
	cfg.MQTT.Topic = defaultMQTTTopic
	cfg.MQTT.ClientID = defaultMQTTClientID
	cfg.Alerts.EqualityTolerance = defaultTolerance

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			return nil, errors.New("config: database dsn required for postgres driver")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("config: unknown database driver %q", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("config: jwt secret is required")
	}
	if cfg.Auth.ExpiresInMinutes <= 0 {
		cfg.Auth.ExpiresInMinutes = defaultExpiresInMinutes
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = defaultCookieName
	}
	if cfg.Alerts.EqualityTolerance < 0 {
		return nil, errors.New("config: alerts.equalityTolerance must not be negative")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// JWTExpiration converts configured expiry to duration.
func (c *Config) JWTExpiration() time.Duration {
	if c.Auth.ExpiresInMinutes <= 0 {
		return defaultExpiresInMinutes * time.Minute
	}
	return time.Duration(c.Auth.ExpiresInMinutes) * time.Minute
}
