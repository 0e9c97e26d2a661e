package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != EnvLocal {
		t.Fatalf("env = %q, want %q", cfg.Env, EnvLocal)
	}
	if cfg.Scheduling.SlotGranularity != 15*time.Minute {
		t.Fatalf("slot granularity = %v, want 15m", cfg.Scheduling.SlotGranularity)
	}
	if cfg.Scheduling.TravelBuffer != 15*time.Minute {
		t.Fatalf("travel buffer = %v, want 15m", cfg.Scheduling.TravelBuffer)
	}
	if cfg.Scheduling.SeriesLockTTL != 10*time.Minute {
		t.Fatalf("series lock ttl = %v, want 10m", cfg.Scheduling.SeriesLockTTL)
	}
	if cfg.Travel.CacheTTL != 72*time.Hour {
		t.Fatalf("cache ttl = %v, want 72h", cfg.Travel.CacheTTL)
	}
	if cfg.DB.Port != 5432 || !cfg.DB.AutoMigrate {
		t.Fatalf("unexpected db defaults: %+v", cfg.DB)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/test.db")
	t.Setenv("SLOT_GRANULARITY", "30m")
	t.Setenv("TRAVEL_CACHE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/test.db" {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
	if cfg.Scheduling.SlotGranularity != 30*time.Minute {
		t.Fatalf("slot granularity = %v, want 30m", cfg.Scheduling.SlotGranularity)
	}
	if cfg.Travel.CacheBackend != "memory" {
		t.Fatalf("cache backend = %q, want memory", cfg.Travel.CacheBackend)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("env: prod\nhttp_server:\n  address: \":8081\"\nscheduling:\n  walker_concurrency: 8\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != EnvProd || cfg.HTTP.Address != ":8081" || cfg.Scheduling.WalkerConcurrency != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_RedisBackendRequiresAddr(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TRAVEL_CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for redis backend without address")
	}
}
