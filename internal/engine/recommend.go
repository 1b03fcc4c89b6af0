package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-predict/internal/models"
)

// RuleEngine appends operator-supplied recommendations to prediction results.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields match anything.
type RuleMatch struct {
	Kind           string   `yaml:"kind"`
	Severity       string   `yaml:"severity"`
	Metric         string   `yaml:"metric"`
	FactorContains []string `yaml:"factor_contains"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty, returns nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("recommendation rules loaded", slog.String("path", path), slog.Int("rules", len(cfg.Rules)))
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the recommendations of every rule matching result.
// metric names the resource or component the result is about, if any.
func (e *RuleEngine) Recommend(result models.PredictionResult, metric string) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Kind != "" && !strings.EqualFold(rule.Match.Kind, string(result.Kind)) {
			continue
		}
		if rule.Match.Severity != "" && !strings.EqualFold(rule.Match.Severity, string(result.Severity)) {
			continue
		}
		if rule.Match.Metric != "" && !metricMatches(rule.Match.Metric, metric, result.ContributingFactors) {
			continue
		}
		if len(rule.Match.FactorContains) > 0 && !factorsContain(rule.Match.FactorContains, result.ContributingFactors) {
			continue
		}
		e.logger.Debug("recommendation rule matched", slog.String("rule", rule.ID), slog.String("kind", string(result.Kind)))
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func metricMatches(want, metric string, factors []string) bool {
	if strings.EqualFold(want, metric) {
		return true
	}
	return factorsContain([]string{want}, factors)
}

func factorsContain(keywords []string, factors []string) bool {
	for _, factor := range factors {
		lower := strings.ToLower(factor)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
