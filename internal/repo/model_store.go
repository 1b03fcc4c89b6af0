package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/miradorstack/mirador-predict/internal/learning"
)

// ModelsBucket holds one snapshot blob per model name.
const ModelsBucket = "models"

// BoltModelStore keeps model snapshots in a single bbolt database.
type BoltModelStore struct {
	db *bolt.DB
}

// OpenBoltModelStore opens (or creates) the database at path.
func OpenBoltModelStore(path string) (*BoltModelStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create model store dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open model store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ModelsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", ModelsBucket, err)
	}
	return &BoltModelStore{db: db}, nil
}

// Load implements learning.Storage.
func (s *BoltModelStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(ModelsBucket)).Get([]byte(key))
		if data == nil {
			return learning.ErrSnapshotNotFound
		}
		// bbolt memory is only valid inside the transaction.
		blob = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Save implements learning.Storage.
func (s *BoltModelStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ModelsBucket)).Put([]byte(key), blob)
	})
}

// Keys lists stored model names.
func (s *BoltModelStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ModelsBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close releases the database file lock.
func (s *BoltModelStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FileModelStore writes each snapshot to its own file. Keys map to
// <dir>/<key>.json unless an explicit path was registered with SetPath.
type FileModelStore struct {
	dir   string
	mu    sync.RWMutex
	paths map[string]string
}

// NewFileModelStore roots snapshots under dir.
func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{dir: dir, paths: make(map[string]string)}
}

// SetPath pins key to an explicit file path.
func (s *FileModelStore) SetPath(key, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[key] = path
}

// Path returns the file used for key.
func (s *FileModelStore) Path(key string) string {
	s.mu.RLock()
	p, ok := s.paths[key]
	s.mu.RUnlock()
	if ok {
		return p
	}
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, name+".json")
}

// Load implements learning.Storage.
func (s *FileModelStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, learning.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read model %s: %w", key, err)
	}
	return data, nil
}

// Save implements learning.Storage. The write goes through a temp file and
// rename so readers never observe a partial snapshot.
func (s *FileModelStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write model %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename model %s: %w", key, err)
	}
	return nil
}

// Close is a no-op so both stores satisfy the same lifecycle.
func (s *FileModelStore) Close() error { return nil }
