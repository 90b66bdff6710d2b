package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Safe182.Region != "대전" {
		t.Errorf("region = %q", cfg.Safe182.Region)
	}
	if cfg.Safe182.MinInterval != 5*time.Minute {
		t.Errorf("min interval = %v", cfg.Safe182.MinInterval)
	}
	if cfg.Safe182.CacheDuration != time.Hour {
		t.Errorf("cache duration = %v", cfg.Safe182.CacheDuration)
	}
	if cfg.Safe182.IdleSleep != 15*time.Minute {
		t.Errorf("idle sleep = %v", cfg.Safe182.IdleSleep)
	}
	if cfg.Kakao.MinQueryLen != 2 {
		t.Errorf("min query len = %d", cfg.Kakao.MinQueryLen)
	}
	if len(cfg.Scheduler.Tasks) != 2 {
		t.Errorf("scheduler tasks = %v", cfg.Scheduler.Tasks)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SAFENET_LOG_LEVEL", "debug")
	t.Setenv("SAFENET_SERVER_ADDR", ":9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}
