package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-predict/internal/learning"
)

func TestBoltModelStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "models", "predict.db")

	store, err := OpenBoltModelStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if _, err := store.Load(ctx, "system_failure"); !errors.Is(err, learning.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, "system_failure", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBoltModelStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	blob, err := reopened.Load(ctx, "system_failure")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(blob) != `{"version":1}` {
		t.Fatalf("unexpected blob %q", blob)
	}
	keys, err := reopened.Keys()
	if err != nil || len(keys) != 1 || keys[0] != "system_failure" {
		t.Fatalf("unexpected keys %v (%v)", keys, err)
	}
}

func TestFileModelStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileModelStore(dir)

	if _, err := store.Load(ctx, "resource_exhaustion"); !errors.Is(err, learning.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, "resource_exhaustion", []byte("first")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "resource_exhaustion", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	blob, err := store.Load(ctx, "resource_exhaustion")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(blob) != "second" {
		t.Fatalf("expected overwritten blob, got %q", blob)
	}
	if got := store.Path("resource_exhaustion"); got != filepath.Join(dir, "resource_exhaustion.json") {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestFileModelStoreExplicitPath(t *testing.T) {
	ctx := context.Background()
	store := NewFileModelStore(t.TempDir())
	custom := filepath.Join(t.TempDir(), "nested", "perf.json")
	store.SetPath("performance_degradation", custom)

	if err := store.Save(ctx, "performance_degradation", []byte("blob")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Path("performance_degradation") != custom {
		t.Fatalf("expected custom path")
	}
	if _, err := store.Load(ctx, "performance_degradation"); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestFileModelStoreSanitisesKeys(t *testing.T) {
	store := NewFileModelStore("/models")
	if got := store.Path("../etc/passwd"); got != filepath.Join("/models", "__etc_passwd.json") {
		t.Fatalf("unexpected sanitised path %s", got)
	}
}

func TestModelPersistsThroughBoltStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBoltModelStore(filepath.Join(t.TempDir(), "predict.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	cfg := learning.Config{Kind: learning.KindClassification, Features: []string{"cpu_usage"}}
	model, err := learning.New(ctx, "system_failure", cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if err := model.Train(ctx, [][]float64{{10}, {20}, {85}, {95}}, []float64{0, 0, 1, 1}); err != nil {
		t.Fatalf("train: %v", err)
	}

	reloaded, err := learning.New(ctx, "system_failure", cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("reload model: %v", err)
	}
	if !reloaded.IsTrained() {
		t.Fatalf("expected reloaded model to be trained")
	}
}
