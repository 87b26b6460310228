// Package memstore provides an in-memory types.PlanStore for tests and
// ephemeral use. Plans are deep-copied through their JSON encoding on every
// read and write, so callers never share memory with stored state and see
// exactly what a file-backed store would return.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// Store implements types.PlanStore in memory.
type Store struct {
	mu     sync.Mutex
	closed bool
	data   []byte
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// NewWithPlans returns a store seeded with plans.
func NewWithPlans(plans []types.Plan) (*Store, error) {
	s := New()
	data, err := encode(plans)
	if err != nil {
		return nil, err
	}
	s.data = data
	return s, nil
}

// Corrupt replaces the stored content with raw bytes. Tests use it to
// simulate a damaged backing document.
func (s *Store) Corrupt(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), raw...)
}

// ReadAll returns a copy of every stored plan.
func (s *Store) ReadAll(ctx context.Context) ([]types.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	return decode(s.data)
}

// WriteAll replaces the stored collection with a copy of plans.
func (s *Store) WriteAll(ctx context.Context, plans []types.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(plans)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	s.data = data
	return nil
}

// Update runs fn against a copy of the collection while holding the store
// mutex and stores the result.
func (s *Store) Update(ctx context.Context, fn func([]types.Plan) ([]types.Plan, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	plans, err := decode(s.data)
	if errors.Is(err, types.ErrCorruptStore) {
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
	data, err := encode(next)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// Close marks the store closed. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func encode(plans []types.Plan) ([]byte, error) {
	if plans == nil {
		plans = []types.Plan{}
	}
	data, err := json.Marshal(plans)
	if err != nil {
		return nil, fmt.Errorf("encoding plans: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]types.Plan, error) {
	if len(data) == 0 {
		return []types.Plan{}, nil
	}
	var plans []types.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
	}
	if plans == nil {
		plans = []types.Plan{}
	}
	return plans, nil
}
