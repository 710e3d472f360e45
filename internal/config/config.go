package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/safetrack/config.yaml",
}

// ConfigPathEnvVar overrides the config file path
const ConfigPathEnvVar = "CONFIG_PATH"

// Config 应用配置
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Log         LogConfig         `koanf:"log"`
	Security    SecurityConfig    `koanf:"security"`
	Redis       RedisConfig       `koanf:"redis"`
	MQTT        MQTTConfig        `koanf:"mqtt"`
	RabbitMQ    RabbitMQConfig    `koanf:"rabbitmq"`
	Recognition RecognitionConfig `koanf:"recognition"`
	Chat        ChatConfig        `koanf:"chat"`
	Geocoding   GeocodingConfig   `koanf:"geocoding"`
	Tracking    TrackingConfig    `koanf:"tracking"`
	Storage     StorageConfig     `koanf:"storage"`
}

type ServerConfig struct {
	Port            string        `koanf:"port"`
	Mode            string        `koanf:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SecurityConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
}

// RedisConfig is optional; an empty Addr selects the in-memory store
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MQTTConfig is optional; an empty Broker disables device sources
type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// RabbitMQConfig is optional; an empty URL logs alerts instead of publishing
type RabbitMQConfig struct {
	URL string `koanf:"url"`
}

type RecognitionConfig struct {
	URL               string        `koanf:"url"`
	Timeout           time.Duration `koanf:"timeout"`
	DefaultConfidence float64       `koanf:"default_confidence"`
}

type ChatConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type GeocodingConfig struct {
	BaseURL   string        `koanf:"base_url"`
	UserAgent string        `koanf:"user_agent"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	Interval  time.Duration `koanf:"interval"` // minimum spacing between upstream requests
}

type TrackingConfig struct {
	Interval          time.Duration `koanf:"interval"`
	Jitter            float64       `koanf:"jitter"`
	RefreshJitter     float64       `koanf:"refresh_jitter"`
	DefaultRadius     float64       `koanf:"default_radius"`
	StatusTTL         time.Duration `koanf:"status_ttl"`
	DeviceTopicPrefix string        `koanf:"device_topic_prefix"`
}

type StorageConfig struct {
	Dir       string `koanf:"dir"`
	PublicURL string `koanf:"public_url"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/safetrack.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			JWTSecret:  "your-secret-key-change-in-production",
			TokenTTL:   24 * time.Hour,
			RateLimit:  120,
			RateWindow: time.Minute,
		},
		MQTT: MQTTConfig{
			ClientID: "safetrack-backend",
		},
		Recognition: RecognitionConfig{
			URL:               "http://localhost:5000/api/compare-faces",
			Timeout:           30 * time.Second,
			DefaultConfidence: 0.85,
		},
		Chat: ChatConfig{
			Model:   "gemini-1.5-pro",
			BaseURL: "https://generativelanguage.googleapis.com",
			Timeout: 60 * time.Second,
		},
		Geocoding: GeocodingConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "SafeTrack/1.0 (safetrack-backend)",
			CacheTTL:  7 * 24 * time.Hour,
			Interval:  time.Second,
		},
		Tracking: TrackingConfig{
			Interval:          5 * time.Second,
			Jitter:            0.0005,
			RefreshJitter:     0.001,
			DefaultRadius:     500,
			StatusTTL:         24 * time.Hour,
			DeviceTopicPrefix: "safetrack/patients",
		},
		Storage: StorageConfig{
			Dir:       "./data/photos",
			PublicURL: "http://localhost:8080/photos",
		},
	}
}

// Load 加载配置: defaults, then an optional YAML file, then environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var envMappings = map[string]string{
	"port":                 "server.port",
	"gin_mode":             "server.mode",
	"shutdown_timeout":     "server.shutdown_timeout",
	"db_path":              "database.path",
	"log_level":            "log.level",
	"log_format":           "log.format",
	"jwt_secret":           "security.jwt_secret",
	"token_ttl":            "security.token_ttl",
	"rate_limit":           "security.rate_limit",
	"rate_window":          "security.rate_window",
	"redis_addr":           "redis.addr",
	"redis_password":       "redis.password",
	"redis_db":             "redis.db",
	"mqtt_broker":          "mqtt.broker",
	"mqtt_client_id":       "mqtt.client_id",
	"mqtt_username":        "mqtt.username",
	"mqtt_password":        "mqtt.password",
	"rabbitmq_url":         "rabbitmq.url",
	"face_api_url":         "recognition.url",
	"face_api_timeout":     "recognition.timeout",
	"face_match_default":   "recognition.default_confidence",
	"gemini_api_key":       "chat.api_key",
	"gemini_model":         "chat.model",
	"gemini_base_url":      "chat.base_url",
	"nominatim_url":        "geocoding.base_url",
	"nominatim_user_agent": "geocoding.user_agent",
	"geocode_cache_ttl":    "geocoding.cache_ttl",
	"tracking_interval":    "tracking.interval",
	"tracking_jitter":      "tracking.jitter",
	"default_safe_radius":  "tracking.default_radius",
	"storage_dir":          "storage.dir",
	"public_photo_url":     "storage.public_url",
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// Validate checks required and ranged values
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwt_secret is required"))
	}
	if c.Security.RateLimit <= 0 || c.Security.RateWindow <= 0 {
		errs = append(errs, errors.New("security.rate_limit and security.rate_window must be positive"))
	}
	if c.Recognition.Timeout <= 0 {
		errs = append(errs, errors.New("recognition.timeout must be positive"))
	}
	if c.Recognition.DefaultConfidence < 0 || c.Recognition.DefaultConfidence > 1 {
		errs = append(errs, errors.New("recognition.default_confidence must be within [0,1]"))
	}
	if c.Tracking.Interval <= 0 {
		errs = append(errs, errors.New("tracking.interval must be positive"))
	}
	if c.Tracking.Jitter < 0 || c.Tracking.RefreshJitter < 0 {
		errs = append(errs, errors.New("tracking jitter must not be negative"))
	}
	if c.Tracking.DefaultRadius <= 0 {
		errs = append(errs, errors.New("tracking.default_radius must be greater than 0"))
	}
	if c.Geocoding.Interval <= 0 {
		errs = append(errs, errors.New("geocoding.interval must be positive"))
	}
	return errors.Join(errs...)
}
