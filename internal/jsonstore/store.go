// Package jsonstore implements the file-backed plan store. The whole
// collection lives in one UTF-8 JSON array (plans.json) that is replaced
// atomically on every write. Access is serialized through an advisory lock
// on a sidecar file, plans.json.lock; the data file's inode changes on every
// write.
package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/internal/lock"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

// File names inside the data directory.
const (
	DocumentName = "plans.json"
	LockName     = DocumentName + ".lock"
)

// Store implements types.PlanStore over a single JSON document.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	path     string
	lockPath string
	locker   *lock.Locker
	logger   *zap.Logger
}

// Open prepares the data directory named by cfg and initializes the document
// to an empty collection if it does not exist yet.
func Open(cfg types.Config, logger *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path:     filepath.Join(dataDir, DocumentName),
		lockPath: filepath.Join(dataDir, LockName),
		locker:   lock.New(cfg.EffectiveLockTimeout(), logger),
		logger:   logger.With(zap.String("store", filepath.Join(dataDir, DocumentName))),
	}

	exists, err := documentExists(s.path)
	if err != nil {
		return nil, err
	}
	if exists {
		return s, nil
	}

	// Re-check under the lock; another process may have initialized it.
	err = s.withLock(context.Background(), func() error {
		exists, err := documentExists(s.path)
		if err != nil || exists {
			return err
		}
		return writeDocument(s.path, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize plan store: %w", err)
	}
	return s, nil
}

// Path returns the location of the JSON document.
func (s *Store) Path() string {
	return s.path
}

// ReadAll returns every stored plan. A missing or empty document yields an
// empty slice; unparsable content yields an error wrapping
// types.ErrCorruptStore.
func (s *Store) ReadAll(ctx context.Context) ([]types.Plan, error) {
	var plans []types.Plan
	err := s.withLock(ctx, func() error {
		var err error
		plans, err = readDocument(s.path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// WriteAll replaces the document with plans.
func (s *Store) WriteAll(ctx context.Context, plans []types.Plan) error {
	return s.withLock(ctx, func() error {
		return writeDocument(s.path, plans)
	})
}

// Update runs a read-modify-write cycle under one lock span. Corrupt content
// is handed to fn as an empty collection so the next write heals the store.
func (s *Store) Update(ctx context.Context, fn func([]types.Plan) ([]types.Plan, error)) error {
	return s.withLock(ctx, func() error {
		plans, err := readDocument(s.path)
		if errors.Is(err, types.ErrCorruptStore) {
			s.logger.Warn("plan store is corrupt; treating as empty", zap.Error(err))
			plans = []types.Plan{}
		} else if err != nil {
			return err
		}

		next, err := fn(plans)
		if errors.Is(err, types.ErrNoChange) {
			return nil
		}
		if err != nil {
			return err
		}
		return writeDocument(s.path, next)
	})
}

// Close marks the store closed. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// withLock opens the sidecar lock file for the duration of one call and runs
// fn while holding the exclusive lock.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return types.ErrStoreClosed
	}

	f, err := lock.OpenFile(s.lockPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.locker.WithLock(ctx, f, fn)
}
