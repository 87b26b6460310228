package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/planstore/internal/jsonstore"
	"github.com/mesh-intelligence/planstore/internal/memstore"
	"github.com/mesh-intelligence/planstore/internal/sqlite"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

func TestOpenSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		check   func(t *testing.T, s types.PlanStore)
	}{
		{types.BackendJSON, func(t *testing.T, s types.PlanStore) { assert.IsType(t, &jsonstore.Store{}, s) }},
		{types.BackendSQLite, func(t *testing.T, s types.PlanStore) { assert.IsType(t, &sqlite.Backend{}, s) }},
		{types.BackendMemory, func(t *testing.T, s types.PlanStore) { assert.IsType(t, &memstore.Store{}, s) }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := Open(types.Config{Backend: tt.backend, DataDir: t.TempDir()}, nil)
			require.NoError(t, err)
			defer s.Close()
			tt.check(t, s)

			plans, err := s.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, plans)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(types.Config{Backend: "postgres"}, nil)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}
