package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/estimate/go/internal/dbconfig"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the gateway configuration. Values come from defaults, then the
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	Store          string   `yaml:"store"`
	NatsURL        string   `yaml:"nats_url"`
	RoomStream     string   `yaml:"room_stream"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Room      RoomConfig      `yaml:"room"`
	WebSocket WebSocketConfig `yaml:"websocket"`

	Database dbconfig.Config `yaml:"-"`
}

type RoomConfig struct {
	AlarmInterval time.Duration `yaml:"alarm_interval"`
	IdleRetention time.Duration `yaml:"idle_retention"`
	EndedGrace    time.Duration `yaml:"ended_grace"`
	InboxSize     int           `yaml:"inbox_size"`
}

type WebSocketConfig struct {
	RateLimit      float64 `yaml:"rate_limit"`
	RateBurst      int     `yaml:"rate_burst"`
	SendBufferSize int     `yaml:"send_buffer_size"`
	MaxMessageSize int64   `yaml:"max_message_size"`
}

func Default() Config {
	return Config{
		Port:           "8081",
		LogLevel:       "info",
		Store:          StoreMemory,
		RoomStream:     "ROOM_EVENTS",
		AllowedOrigins: []string{"*"},
		Room: RoomConfig{
			AlarmInterval: time.Hour,
			IdleRetention: 24 * time.Hour,
			EndedGrace:    time.Hour,
			InboxSize:     256,
		},
		WebSocket: WebSocketConfig{
			RateLimit:      20,
			RateBurst:      40,
			SendBufferSize: 256,
			MaxMessageSize: 8 * 1024,
		},
	}
}

// Load builds the configuration from the environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = getEnv("GATEWAY_PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Store = getEnv("STORE", cfg.Store)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.RoomStream = getEnv("ROOM_STREAM", cfg.RoomStream)
	cfg.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.Room.AlarmInterval = getEnvAsDuration("ALARM_INTERVAL", cfg.Room.AlarmInterval)
	cfg.Room.IdleRetention = getEnvAsDuration("IDLE_RETENTION", cfg.Room.IdleRetention)
	cfg.Room.EndedGrace = getEnvAsDuration("ENDED_GRACE", cfg.Room.EndedGrace)

	cfg.WebSocket.RateLimit = getEnvAsFloat("WS_RATE_LIMIT", cfg.WebSocket.RateLimit)
	cfg.WebSocket.RateBurst = getEnvAsInt("WS_RATE_BURST", cfg.WebSocket.RateBurst)

	cfg.Database = dbconfig.NewConfigFromEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Store, StoreMemory, StorePostgres)
	}
	if c.WebSocket.RateLimit <= 0 || c.WebSocket.RateBurst <= 0 {
		return fmt.Errorf("websocket rate limit and burst must be positive")
	}
	if c.WebSocket.SendBufferSize <= 0 || c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket send buffer and message size must be positive")
	}
	if c.Room.AlarmInterval <= 0 {
		return fmt.Errorf("room alarm interval must be positive, got %s", c.Room.AlarmInterval)
	}
	if c.Room.IdleRetention < 0 || c.Room.EndedGrace < 0 {
		return fmt.Errorf("room retention windows must not be negative")
	}
	if c.Room.InboxSize <= 0 {
		return fmt.Errorf("room inbox size must be positive, got %d", c.Room.InboxSize)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
