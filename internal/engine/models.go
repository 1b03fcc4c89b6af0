package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/miradorstack/mirador-predict/internal/config"
	"github.com/miradorstack/mirador-predict/internal/learning"
)

// LoadModels constructs every configured model, loading stored snapshots
// from storage. Models whose snapshot cannot be loaded start untrained; each
// model records its own load outcome.
func LoadModels(ctx context.Context, defs map[string]config.ModelConfig, storage learning.Storage, logger *slog.Logger) (map[string]*learning.Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*learning.Model, len(defs))
	for _, name := range names {
		def := defs[name]
		model, err := learning.New(ctx, name, learning.Config{
			Kind:            learning.Kind(def.Kind),
			Features:        def.Features,
			Hyperparameters: def.Hyperparameters,
		}, storage, learning.JSONCodec{}, logger)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		out[name] = model
	}
	return out, nil
}
