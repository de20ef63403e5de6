// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AIConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	DefaultModel   string        `yaml:"default_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxToolRounds  int           `yaml:"max_tool_rounds"`
}

type QueueConfig struct {
	Capacity      int           `yaml:"capacity"`       // input queue slots
	Workers       int           `yaml:"workers"`        // concurrent job consumers
	StreamBuffer  int           `yaml:"stream_buffer"`  // per-job output channel slots
	StreamTimeout time.Duration `yaml:"stream_timeout"` // relay stall cutoff
	Keepalive     time.Duration `yaml:"keepalive"`      // SSE comment interval
	SweepAfter    time.Duration `yaml:"sweep_after"`    // drop never-drained streams
}

type StorageConfig struct {
	ChatsFile   string `yaml:"chats_file"`
	DatabaseURL string `yaml:"database_url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	AI      AIConfig      `yaml:"ai"`
	Queue   QueueConfig   `yaml:"queue"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file, then applies .env / environment
// overrides and defaults. A missing config file is not an error: the gateway
// can run entirely from environment variables.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("DEFAULT_MODEL"); v != "" {
		cfg.AI.DefaultModel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 5 * time.Minute
	}
	if cfg.AI.MaxToolRounds <= 0 {
		cfg.AI.MaxToolRounds = 16
	}
	if cfg.Queue.Capacity <= 0 {
		cfg.Queue.Capacity = 1024
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 1
	}
	if cfg.Queue.StreamBuffer <= 0 {
		cfg.Queue.StreamBuffer = 256
	}
	if cfg.Queue.StreamTimeout <= 0 {
		cfg.Queue.StreamTimeout = 5 * time.Minute
	}
	if cfg.Queue.Keepalive <= 0 {
		cfg.Queue.Keepalive = 15 * time.Second
	}
	if cfg.Queue.SweepAfter <= 0 {
		cfg.Queue.SweepAfter = 30 * time.Minute
	}
	if cfg.Storage.ChatsFile == "" {
		cfg.Storage.ChatsFile = "chats.json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
}
