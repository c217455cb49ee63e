package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"balance_aggregator/internal/app/port"

	"github.com/pkg/errors"
)

// FileStore keeps every key in its own JSON file inside dir.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

// Get implements port.KeyValueStore.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, port.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return data, nil
}

// Set implements port.KeyValueStore. Запись через временный файл, чтобы
// не оставить наполовину записанный JSON.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", key)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "close temp file for %s", key)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename temp file for %s", key)
	}
	return nil
}

// Delete implements port.KeyValueStore. Deleting a missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}
