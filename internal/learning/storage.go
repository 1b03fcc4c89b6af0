package learning

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by Storage when no blob exists for a key.
var ErrSnapshotNotFound = errors.New("model snapshot not found")

// Storage persists encoded model snapshots.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}
