package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Hub.QueueSize != 64 {
		t.Fatalf("queue size = %d, want 64", cfg.Hub.QueueSize)
	}
	if cfg.PingInterval() != 30*time.Second {
		t.Fatalf("ping interval = %v", cfg.PingInterval())
	}
	if cfg.DefaultDuration() != 3*time.Minute {
		t.Fatalf("default duration = %v, want 3m", cfg.DefaultDuration())
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timekeeper.yaml")
	data := []byte("server:\n  port: 9100\nhub:\n  queue_size: 32\nlog_level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TIMEKEEPER_CONFIG", path)
	t.Setenv("TIMEKEEPER_PORT", "9200") // env wins over file

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Fatalf("port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Hub.QueueSize != 32 {
		t.Fatalf("queue size = %d, want 32 from file", cfg.Hub.QueueSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("TIMEKEEPER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
