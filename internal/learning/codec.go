package learning

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is bumped whenever the persisted layout changes.
const SnapshotVersion = 1

// Snapshot is the durable form of a trained model. Feature order is part of
// the contract: a snapshot only loads into a model configured with the same
// feature names in the same order.
type Snapshot struct {
	Version         int                `json:"version"`
	Name            string             `json:"name"`
	Kind            Kind               `json:"kind"`
	Features        []string           `json:"features"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`
	TrainedAt       time.Time          `json:"trained_at"`
	TrainingScore   float64            `json:"training_score"`
	Params          []byte             `json:"params"`
}

// Codec turns snapshots into byte blobs and back.
type Codec interface {
	Encode(Snapshot) ([]byte, error)
	Decode([]byte) (Snapshot, error)
}

// JSONCodec stores snapshots as JSON documents.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.Name, err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", s.Version)
	}
	return s, nil
}
