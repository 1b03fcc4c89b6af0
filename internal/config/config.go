package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the prediction service.
type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Clients    ClientsConfig          `yaml:"clients"`
	Logging    LoggingConfig          `yaml:"logging"`
	Rules      RulesConfig            `yaml:"rules"`
	Storage    StorageConfig          `yaml:"storage"`
	Predictive PredictiveConfig       `yaml:"predictive"`
	Models     map[string]ModelConfig `yaml:"models"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups upstream integrations.
type ClientsConfig struct {
	Core CoreClientConfig `yaml:"core"`
}

// CoreClientConfig configures history backfill from mirador-core. Backfill
// is skipped when BaseURL is empty.
type CoreClientConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	MetricsPath string        `yaml:"metricsPath"`
	Timeout     time.Duration `yaml:"timeout"`
	Source      string        `yaml:"source"`
	Backfill    []string      `yaml:"backfill"`
	Lookback    time.Duration `yaml:"lookback"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls rule-pack loading for the recommender.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// Storage backends for model snapshots.
const (
	StorageFile = "file"
	StorageBolt = "bolt"
)

// StorageConfig selects where trained models are persisted. Path is a
// directory for the file backend and a database file for bolt.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// PredictiveConfig tunes the analysers and caches.
type PredictiveConfig struct {
	WindowSize          int           `yaml:"window_size"`
	TrendThreshold      float64       `yaml:"trend_threshold"`
	SeasonalityPeriods  []int         `yaml:"seasonality_periods"`
	MinPatternLength    int           `yaml:"min_pattern_length"`
	MaxPatternLength    int           `yaml:"max_pattern_length"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MaxHistoryPoints    int           `yaml:"max_history_points"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries     int           `yaml:"cache_max_entries"`
}

// ModelConfig declares one learned model. StoragePath overrides the
// snapshot location for the file backend.
type ModelConfig struct {
	Kind            string             `yaml:"kind"`
	StoragePath     string             `yaml:"storage_path"`
	Features        []string           `yaml:"features"`
	Hyperparameters map[string]float64 `yaml:"hyperparameters"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_PREDICT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StorageFile, StorageBolt:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be %q or %q", c.Storage.Backend, StorageFile, StorageBolt))
	}

	p := c.Predictive
	if p.MinPatternLength < 2 {
		errs = append(errs, fmt.Errorf("predictive.min_pattern_length must be at least 2, got %d", p.MinPatternLength))
	}
	if p.MaxPatternLength < p.MinPatternLength {
		errs = append(errs, fmt.Errorf("predictive.max_pattern_length %d below min_pattern_length %d", p.MaxPatternLength, p.MinPatternLength))
	}
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("predictive.similarity_threshold must be in (0,1], got %v", p.SimilarityThreshold))
	}
	if p.TrendThreshold < 0 {
		errs = append(errs, fmt.Errorf("predictive.trend_threshold must not be negative"))
	}
	if p.WindowSize <= 0 || p.MaxHistoryPoints <= 0 {
		errs = append(errs, fmt.Errorf("predictive.window_size and max_history_points must be positive"))
	}
	for _, period := range p.SeasonalityPeriods {
		if period < 2 {
			errs = append(errs, fmt.Errorf("predictive.seasonality_periods entry %d must be at least 2", period))
		}
	}

	for name, m := range c.Models {
		switch m.Kind {
		case "classification", "regression", "anomaly":
		default:
			errs = append(errs, fmt.Errorf("models.%s.kind %q is not classification, regression or anomaly", name, m.Kind))
		}
		if len(m.Features) == 0 {
			errs = append(errs, fmt.Errorf("models.%s.features must not be empty", name))
		}
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Core: CoreClientConfig{
				MetricsPath: "/api/v1/predict/metrics",
				Timeout:     5 * time.Second,
				Lookback:    6 * time.Hour,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		Storage: StorageConfig{Backend: StorageFile, Path: "data/models"},
		Predictive: PredictiveConfig{
			WindowSize:          100,
			TrendThreshold:      0.05,
			SeasonalityPeriods:  []int{24, 168},
			MinPatternLength:    5,
			MaxPatternLength:    50,
			SimilarityThreshold: 0.8,
			MaxHistoryPoints:    1000,
			CacheTTL:            300 * time.Second,
			CacheMaxEntries:     10000,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_PREDICT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_PREDICT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_CORE_BASE_URL"); v != "" {
		cfg.Clients.Core.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_CORE_METRICS_PATH"); v != "" {
		cfg.Clients.Core.MetricsPath = v
	}
	if v := os.Getenv("MIRADOR_PREDICT_BACKFILL"); v != "" {
		cfg.Clients.Core.Backfill = splitList(v)
	}
	if v := os.Getenv("MIRADOR_PREDICT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_PREDICT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_PREDICT_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("MIRADOR_PREDICT_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_PREDICT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MIRADOR_PREDICT_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Predictive.WindowSize = n
		}
	}
	if v := os.Getenv("MIRADOR_PREDICT_TREND_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Predictive.TrendThreshold = f
		}
	}
	if v := os.Getenv("MIRADOR_PREDICT_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Predictive.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("MIRADOR_PREDICT_MAX_HISTORY_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Predictive.MaxHistoryPoints = n
		}
	}
	if v := os.Getenv("MIRADOR_PREDICT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Predictive.CacheTTL = d
		}
	}
	if v := os.Getenv("MIRADOR_PREDICT_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Predictive.CacheMaxEntries = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
