package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_PREDICT_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Predictive.WindowSize != 100 || cfg.Predictive.TrendThreshold != 0.05 {
		t.Fatalf("unexpected predictive defaults: %+v", cfg.Predictive)
	}
	if cfg.Predictive.CacheTTL != 300*time.Second {
		t.Fatalf("unexpected cache ttl %v", cfg.Predictive.CacheTTL)
	}
	if cfg.Predictive.CacheMaxEntries != 10000 {
		t.Fatalf("unexpected cache bound %d", cfg.Predictive.CacheMaxEntries)
	}
	if cfg.Storage.Backend != StorageFile {
		t.Fatalf("unexpected storage backend %q", cfg.Storage.Backend)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predict.yaml")
	if err := os.WriteFile(path, []byte(`
server:
  address: ":6000"
storage:
  backend: bolt
  path: /var/lib/predict/models.db
predictive:
  window_size: 200
  min_pattern_length: 4
  max_pattern_length: 12
  similarity_threshold: 0.9
  cache_ttl: 1m
models:
  system_failure:
    kind: classification
    features: [cpu_usage, memory_usage, disk_usage, error_rate]
    hyperparameters:
      learning_rate: 0.05
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MIRADOR_PREDICT_SERVER_ADDRESS", ":7000")
	t.Setenv("MIRADOR_PREDICT_MAX_HISTORY_POINTS", "500")
	t.Setenv("MIRADOR_PREDICT_BACKFILL", "cpu_usage, disk_usage")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Fatalf("expected env override, got %s", cfg.Server.Address)
	}
	if cfg.Storage.Backend != StorageBolt || cfg.Predictive.WindowSize != 200 {
		t.Fatalf("file values not applied: %+v %+v", cfg.Storage, cfg.Predictive)
	}
	if cfg.Predictive.MaxHistoryPoints != 500 || cfg.Predictive.CacheTTL != time.Minute {
		t.Fatalf("unexpected predictive config: %+v", cfg.Predictive)
	}
	if cfg.Predictive.TrendThreshold != 0.05 {
		t.Fatalf("expected default trend threshold to survive partial file")
	}
	model, ok := cfg.Models["system_failure"]
	if !ok || model.Kind != "classification" || model.Hyperparameters["learning_rate"] != 0.05 {
		t.Fatalf("unexpected model config: %+v", cfg.Models)
	}
	if len(cfg.Clients.Core.Backfill) != 2 || cfg.Clients.Core.Backfill[1] != "disk_usage" {
		t.Fatalf("unexpected backfill list %v", cfg.Clients.Core.Backfill)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Backend = "s3"
	cfg.Predictive.MinPatternLength = 10
	cfg.Predictive.MaxPatternLength = 5
	cfg.Models = map[string]ModelConfig{"x": {Kind: "forest", Features: []string{"a"}}}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"storage.backend", "max_pattern_length", "models.x.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	ok := defaultConfig()
	if err := ok.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("MIRADOR_PREDICT_STORAGE_BACKEND", "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.Storage.Backend != StorageBolt {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if len(cfg.Models) != 2 || cfg.Models["system_failure"].Kind != "classification" {
		t.Fatalf("unexpected models %+v", cfg.Models)
	}
	if len(cfg.Clients.Core.Backfill) != 5 || cfg.Clients.Core.Lookback != 6*time.Hour {
		t.Fatalf("unexpected core client config %+v", cfg.Clients.Core)
	}
}
