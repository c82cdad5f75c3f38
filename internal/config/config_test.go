package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.Server.Port)
	}
	if cfg.OpenAI.VisionModel != "gpt-4o-mini" {
		t.Errorf("expected VisionModel=gpt-4o-mini, got %s", cfg.OpenAI.VisionModel)
	}
	if cfg.Images.ClassifyMaxEdge != 512 || cfg.Images.ClassifyQuality != 70 {
		t.Errorf("unexpected classify params: %d/%d", cfg.Images.ClassifyMaxEdge, cfg.Images.ClassifyQuality)
	}
	if cfg.Images.ChecklistMaxEdge != 768 || cfg.Images.ChecklistQuality != 80 {
		t.Errorf("unexpected checklist params: %d/%d", cfg.Images.ChecklistMaxEdge, cfg.Images.ChecklistQuality)
	}
	if cfg.Images.MaxEdge != 2048 || cfg.Images.Quality != 85 {
		t.Errorf("unexpected general params: %d/%d", cfg.Images.MaxEdge, cfg.Images.Quality)
	}
	if cfg.Pipeline.ChecklistBatchSize != 6 {
		t.Errorf("expected ChecklistBatchSize=6, got %d", cfg.Pipeline.ChecklistBatchSize)
	}
	if cfg.RateLimit.TPM != 90000 || cfg.RateLimit.RPM != 500 || cfg.RateLimit.MaxConcurrent != 3 {
		t.Errorf("unexpected rate limits: %+v", cfg.RateLimit)
	}
	if cfg.Cache.ExpireSeconds != 3600 {
		t.Errorf("expected ExpireSeconds=3600, got %d", cfg.Cache.ExpireSeconds)
	}
	if !cfg.Fetch.AllowLocalhostURLs {
		t.Error("expected AllowLocalhostURLs=true by default")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORT", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.OpenAI.VisionModel = "gpt-4o"
	cfg.Server.Port = 9001

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.OpenAI.VisionModel != "gpt-4o" {
		t.Errorf("expected VisionModel=gpt-4o, got %s", loaded.OpenAI.VisionModel)
	}
	if loaded.Server.Port != 9001 {
		t.Errorf("expected Port=9001, got %d", loaded.Server.Port)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default Port=8000, got %d", cfg.Server.Port)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-test")
	t.Setenv("VISION_MODEL", "gpt-4o")
	t.Setenv("RATE_LIMIT_TPM", "120000")
	t.Setenv("ALLOW_LOCALHOST_URLS", "false")
	t.Setenv("PORT", "not-a-number")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.OpenAI.APIKey != "sk-env-test" {
		t.Errorf("expected APIKey=sk-env-test, got %s", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.VisionModel != "gpt-4o" {
		t.Errorf("expected VisionModel=gpt-4o, got %s", cfg.OpenAI.VisionModel)
	}
	if cfg.RateLimit.TPM != 120000 {
		t.Errorf("expected TPM=120000, got %d", cfg.RateLimit.TPM)
	}
	if cfg.Fetch.AllowLocalhostURLs {
		t.Error("expected AllowLocalhostURLs=false after override")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("malformed PORT should be ignored, got %d", cfg.Server.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}

	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative port")
	}

	cfg = DefaultConfig()
	cfg.Images.Quality = 101
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for quality > 100")
	}

	cfg = DefaultConfig()
	cfg.Pipeline.ChecklistBatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero batch size")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr())
	}
	if cfg.Fetch.FetchTimeout() != 30*time.Second {
		t.Errorf("unexpected fetch timeout: %v", cfg.Fetch.FetchTimeout())
	}
	if cfg.CacheTTL() != time.Hour {
		t.Errorf("unexpected cache TTL: %v", cfg.CacheTTL())
	}

	cfg.Server.ShutdownTimeout = "garbage"
	if cfg.GetShutdownTimeout() != 5*time.Second {
		t.Errorf("malformed shutdown timeout should fall back to 5s, got %v", cfg.GetShutdownTimeout())
	}
}
