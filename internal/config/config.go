package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Port    string `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	Verbose bool   `yaml:"verbose"`

	// Inbound websocket events per second per connection
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	MessageBurst      int     `yaml:"message_burst"`

	Review    ReviewConfig    `yaml:"review"`
	Retention RetentionConfig `yaml:"retention"`
}

type ReviewConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`

	// Review calls per minute per remote address
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

type RetentionConfig struct {
	Interval       time.Duration `yaml:"interval"`
	KeepAutoSaves  int           `yaml:"keep_auto_saves"`
	SessionsPerRun int           `yaml:"sessions_per_run"`
}

func Default() Config {
	return Config{
		Port:              "5000",
		DBPath:            "./data/codepilot.db",
		MessagesPerSecond: 100,
		MessageBurst:      200,
		Review: ReviewConfig{
			Endpoint:          "https://router.huggingface.co/v1/chat/completions",
			Model:             "deepseek-ai/DeepSeek-R1-Distill-Qwen-14B:novita",
			Timeout:           60 * time.Second,
			RequestsPerMinute: 10,
			Burst:             5,
		},
		Retention: RetentionConfig{
			Interval:       5 * time.Minute,
			KeepAutoSaves:  20,
			SessionsPerRun: 1000,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CODEPILOT_CONFIG (if set), then individual environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CODEPILOT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := getenv("CODEPILOT_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := getenv("HF_API_KEY"); v != "" {
		c.Review.APIKey = v
	}
	if v := getenv("HF_CHAT_API"); v != "" {
		c.Review.Endpoint = v
	}
	if v := getenv("HF_MODEL"); v != "" {
		c.Review.Model = v
	}
	if v := getenv("CODEPILOT_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CODEPILOT_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	if v := getenv("CODEPILOT_MESSAGES_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CODEPILOT_MESSAGES_PER_SECOND: %w", err)
		}
		c.MessagesPerSecond = f
	}
	if v := getenv("CODEPILOT_RETENTION_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CODEPILOT_RETENTION_INTERVAL: %w", err)
		}
		c.Retention.Interval = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.MessagesPerSecond <= 0 || c.MessageBurst <= 0 {
		return fmt.Errorf("message rate limits must be positive")
	}
	if c.Review.RequestsPerMinute <= 0 || c.Review.Burst <= 0 {
		return fmt.Errorf("review rate limits must be positive")
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("retention interval must be positive")
	}
	if c.Retention.KeepAutoSaves < 0 {
		return fmt.Errorf("retention keep_auto_saves must not be negative")
	}
	return nil
}
