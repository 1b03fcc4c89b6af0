package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/miradorstack/mirador-predict/internal/metrics"
)

// Kind selects the estimator behind a Model.
type Kind string

const (
	KindClassification Kind = "classification"
	KindRegression     Kind = "regression"
	KindAnomaly        Kind = "anomaly"
)

// Valid reports whether k names a supported estimator.
func (k Kind) Valid() bool {
	switch k {
	case KindClassification, KindRegression, KindAnomaly:
		return true
	}
	return false
}

var (
	// ErrNotTrained is returned by Predict before a successful Train or load.
	ErrNotTrained = errors.New("model not trained")
	// ErrInvalidTrainingData flags empty, ragged or mislabelled training input.
	ErrInvalidTrainingData = errors.New("invalid training data")
	// ErrFeatureMismatch flags feature vectors of the wrong width.
	ErrFeatureMismatch = errors.New("feature count mismatch")
)

// Config describes a model's estimator and inputs.
type Config struct {
	Kind            Kind
	Features        []string
	Hyperparameters map[string]float64
}

// Prediction is the output of a trained model. Classification fills Value
// (0 or 1) and Probability; regression fills Value; anomaly models fill
// IsAnomaly and AnomalyScore. Confidence is always in [0,1].
type Prediction struct {
	Value        float64
	Probability  float64
	Confidence   float64
	IsAnomaly    bool
	AnomalyScore float64
}

// Score collapses a prediction into a [0,1] risk contribution.
func (p Prediction) Score(kind Kind) float64 {
	switch kind {
	case KindAnomaly:
		return clamp01(p.AnomalyScore)
	case KindClassification:
		return clamp01(p.Probability)
	default:
		return clamp01(p.Value)
	}
}

type estimator interface {
	fit(rows [][]float64, labels []float64, hp hyperparameters) (score float64, err error)
	predict(features []float64) Prediction
	marshal() ([]byte, error)
	// unmarshal restores fitted parameters for width input features.
	unmarshal(data []byte, width int) error
}

// Model wraps one trainable estimator with eager load and save-on-train persistence.
type Model struct {
	mu        sync.RWMutex
	name      string
	cfg       Config
	storage   Storage
	codec     Codec
	logger    *slog.Logger
	est       estimator
	trained   bool
	trainedAt time.Time
	score     float64
	now       func() time.Time
}

// New constructs a Model and loads any snapshot storage holds for name. Load
// failures leave the model untrained; only an unsupported kind is an error.
// storage may be nil for an in-memory model; codec defaults to JSONCodec.
func New(ctx context.Context, name string, cfg Config, storage Storage, codec Codec, logger *slog.Logger) (*Model, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("model %s: unsupported kind %q", name, cfg.Kind)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	m := &Model{
		name:    name,
		cfg:     cfg,
		storage: storage,
		codec:   codec,
		logger:  logger.With(slog.String("model", name)),
		now:     time.Now,
	}
	m.cfg.Features = append([]string(nil), cfg.Features...)
	m.load(ctx)
	return m, nil
}

// Name returns the model's registry name.
func (m *Model) Name() string { return m.name }

// Kind returns the estimator kind.
func (m *Model) Kind() Kind { return m.cfg.Kind }

// Features returns the ordered feature names.
func (m *Model) Features() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.cfg.Features...)
}

// IsTrained reports whether Predict can be served.
func (m *Model) IsTrained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// TrainingScore is accuracy for classifiers, R² for regression and the
// anomaly threshold for isolation forests.
func (m *Model) TrainingScore() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.score
}

// Train fits the estimator and persists the result. labels is ignored for
// anomaly models. A failed save is logged; the trained model is still served.
func (m *Model) Train(ctx context.Context, rows [][]float64, labels []float64) error {
	if err := m.validateTraining(rows, labels); err != nil {
		return err
	}

	est := newEstimator(m.cfg.Kind, m.cfg.Features)
	score, err := est.fit(rows, labels, hyperparameters(m.cfg.Hyperparameters))
	if err != nil {
		return fmt.Errorf("train %s: %w", m.name, err)
	}

	m.mu.Lock()
	if len(m.cfg.Features) == 0 {
		m.cfg.Features = defaultFeatureNames(len(rows[0]))
	}
	m.est = est
	m.trained = true
	m.trainedAt = m.now().UTC()
	m.score = score
	snapshot, snapErr := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("model trained", slog.Int("rows", len(rows)), slog.Float64("training_score", score))

	if snapErr != nil {
		metrics.ObserveModelOperation(m.name, "save", snapErr)
		m.logger.Warn("model snapshot failed", slog.Any("error", snapErr))
		return nil
	}
	m.save(ctx, snapshot)
	return nil
}

// Predict runs the trained estimator on a feature vector in Features() order.
func (m *Model) Predict(features []float64) (Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return Prediction{}, fmt.Errorf("%s: %w", m.name, ErrNotTrained)
	}
	if len(features) != len(m.cfg.Features) {
		return Prediction{}, fmt.Errorf("%s: %w: want %d, got %d", m.name, ErrFeatureMismatch, len(m.cfg.Features), len(features))
	}
	for _, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Prediction{}, fmt.Errorf("%s: non-finite feature value", m.name)
		}
	}
	return m.est.predict(features), nil
}

// Vector orders named values by the model's features; missing names become 0.
func (m *Model) Vector(values map[string]float64) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec := make([]float64, len(m.cfg.Features))
	for i, name := range m.cfg.Features {
		vec[i] = values[name]
	}
	return vec
}

func (m *Model) snapshotLocked() (Snapshot, error) {
	params, err := m.est.marshal()
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal %s params: %w", m.name, err)
	}
	return Snapshot{
		Version:         SnapshotVersion,
		Name:            m.name,
		Kind:            m.cfg.Kind,
		Features:        append([]string(nil), m.cfg.Features...),
		Hyperparameters: m.cfg.Hyperparameters,
		TrainedAt:       m.trainedAt,
		TrainingScore:   m.score,
		Params:          params,
	}, nil
}

func (m *Model) save(ctx context.Context, snapshot Snapshot) {
	if m.storage == nil {
		return
	}
	err := m.persist(ctx, snapshot)
	metrics.ObserveModelOperation(m.name, "save", err)
	if err != nil {
		m.logger.Warn("model save failed", slog.Any("error", err))
	}
}

func (m *Model) persist(ctx context.Context, snapshot Snapshot) error {
	blob, err := m.codec.Encode(snapshot)
	if err != nil {
		return err
	}
	if err := m.storage.Save(ctx, m.name, blob); err != nil {
		return err
	}
	m.logger.Debug("model saved", slog.Int("bytes", len(blob)))
	return nil
}

// load restores a stored snapshot. A missing snapshot is counted as
// not_found, not as a load error.
func (m *Model) load(ctx context.Context) {
	if m.storage == nil {
		return
	}
	blob, err := m.storage.Load(ctx, m.name)
	if errors.Is(err, ErrSnapshotNotFound) {
		metrics.ObserveModelOutcome(m.name, "load", metrics.OutcomeNotFound)
		m.logger.Debug("no stored model snapshot")
		return
	}
	if err == nil {
		err = m.restore(blob)
	}
	metrics.ObserveModelOperation(m.name, "load", err)
	if err != nil {
		m.logger.Warn("model load failed, starting untrained", slog.Any("error", err))
		return
	}
	m.logger.Info("model loaded", slog.Time("trained_at", m.trainedAt))
}

func (m *Model) restore(blob []byte) error {
	snapshot, err := m.codec.Decode(blob)
	if err != nil {
		return err
	}
	if snapshot.Kind != m.cfg.Kind {
		return fmt.Errorf("stored kind %q does not match configured kind %q", snapshot.Kind, m.cfg.Kind)
	}
	if len(m.cfg.Features) > 0 && !slices.Equal(snapshot.Features, m.cfg.Features) {
		return fmt.Errorf("stored features %v do not match configured features %v", snapshot.Features, m.cfg.Features)
	}
	if len(snapshot.Features) == 0 {
		return errors.New("stored snapshot has no features")
	}
	est := newEstimator(snapshot.Kind, snapshot.Features)
	if err := est.unmarshal(snapshot.Params, len(snapshot.Features)); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Features = append([]string(nil), snapshot.Features...)
	m.est = est
	m.trained = true
	m.trainedAt = snapshot.TrainedAt
	m.score = snapshot.TrainingScore
	return nil
}

func (m *Model) validateTraining(rows [][]float64, labels []float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidTrainingData)
	}
	width := len(rows[0])
	if width == 0 {
		return fmt.Errorf("%w: empty feature rows", ErrInvalidTrainingData)
	}
	if want := len(m.Features()); want > 0 && width != want {
		return fmt.Errorf("%w: rows have %d features, model expects %d", ErrInvalidTrainingData, width, want)
	}
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrInvalidTrainingData, i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d has non-finite value", ErrInvalidTrainingData, i)
			}
		}
	}
	if m.cfg.Kind == KindAnomaly {
		return nil
	}
	if len(labels) != len(rows) {
		return fmt.Errorf("%w: %d labels for %d rows", ErrInvalidTrainingData, len(labels), len(rows))
	}
	if m.cfg.Kind == KindClassification {
		for i, l := range labels {
			if l != 0 && l != 1 {
				return fmt.Errorf("%w: label %d is %v, want 0 or 1", ErrInvalidTrainingData, i, l)
			}
		}
	}
	return nil
}

func newEstimator(kind Kind, features []string) estimator {
	switch kind {
	case KindClassification:
		return &logisticRegression{}
	case KindRegression:
		return &linearRegression{features: features}
	default:
		return &isolationForest{}
	}
}

func defaultFeatureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i)
	}
	return names
}

type hyperparameters map[string]float64

func (h hyperparameters) get(key string, fallback float64) float64 {
	if v, ok := h[key]; ok && !math.IsNaN(v) {
		return v
	}
	return fallback
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finiteAll(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
