package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/engine"
)

func TestOpenModelStoreFallsBackWhenUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	cases := map[string]config.StorageConfig{
		"bolt path under a file": {Backend: config.StorageBolt, Path: filepath.Join(blocker, "models.db")},
		"unknown backend":        {Backend: "s3", Path: t.TempDir()},
	}
	for name, storage := range cases {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			cfg := &config.Config{
				Storage: storage,
				Models: map[string]config.ModelConfig{
					"system_failure": {Kind: "classification", Features: []string{"cpu_usage"}},
				},
			}

			store := openModelStore(cfg, logger)
			if store != nil {
				t.Fatalf("expected nil store, got %T", store)
			}
			if !strings.Contains(logs.String(), "model storage unavailable") {
				t.Fatalf("expected a warning, got %q", logs.String())
			}

			learned, err := engine.LoadModels(context.Background(), cfg.Models, store, logger)
			if err != nil {
				t.Fatalf("load models without storage: %v", err)
			}
			if learned["system_failure"] == nil || learned["system_failure"].IsTrained() {
				t.Fatalf("expected an untrained model")
			}
		})
	}
}

func TestOpenModelStoreFileBackend(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.StorageFile, Path: t.TempDir()},
		Models: map[string]config.ModelConfig{
			"capacity": {Kind: "regression", StoragePath: filepath.Join(t.TempDir(), "capacity.json")},
		},
	}
	store := openModelStore(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if store == nil {
		t.Fatalf("expected file store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
