package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Every field can come from the yaml
// file named by TIMEKEEPER_CONFIG and be overridden from the environment.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Hub struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"hub"`
	Timer struct {
		DefaultDurationSec int    `yaml:"default_duration_sec"`
		DefaultMode        string `yaml:"default_mode"`
	} `yaml:"timer"`
	Websocket struct {
		PingIntervalSec int `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int `yaml:"read_timeout_sec"`
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
	} `yaml:"websocket"`
	LogLevel string `yaml:"log_level"`
}

func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Timer.DefaultDurationSec) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Websocket.PingIntervalSec) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Websocket.ReadTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Websocket.WriteTimeoutSec) * time.Second
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Hub.QueueSize = 64
	cfg.Timer.DefaultDurationSec = 180
	cfg.Timer.DefaultMode = "countdown"
	cfg.Websocket.PingIntervalSec = 30
	cfg.Websocket.ReadTimeoutSec = 60
	cfg.Websocket.WriteTimeoutSec = 10
	cfg.LogLevel = "info"
	return cfg
}

func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("TIMEKEEPER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Host = getEnv("TIMEKEEPER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("TIMEKEEPER_PORT", cfg.Server.Port)
	cfg.Hub.QueueSize = getEnvAsInt("TIMEKEEPER_QUEUE_SIZE", cfg.Hub.QueueSize)
	cfg.Timer.DefaultDurationSec = getEnvAsInt("TIMEKEEPER_DEFAULT_DURATION_SEC", cfg.Timer.DefaultDurationSec)
	cfg.Timer.DefaultMode = getEnv("TIMEKEEPER_DEFAULT_MODE", cfg.Timer.DefaultMode)
	cfg.Websocket.PingIntervalSec = getEnvAsInt("TIMEKEEPER_PING_INTERVAL_SEC", cfg.Websocket.PingIntervalSec)
	cfg.Websocket.ReadTimeoutSec = getEnvAsInt("TIMEKEEPER_READ_TIMEOUT_SEC", cfg.Websocket.ReadTimeoutSec)
	cfg.Websocket.WriteTimeoutSec = getEnvAsInt("TIMEKEEPER_WRITE_TIMEOUT_SEC", cfg.Websocket.WriteTimeoutSec)
	cfg.LogLevel = getEnv("TIMEKEEPER_LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
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

