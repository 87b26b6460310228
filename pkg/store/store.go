// Package store provides the public factory for plan store backends while
// keeping the implementations internal.
package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/internal/jsonstore"
	"github.com/mesh-intelligence/planstore/internal/memstore"
	"github.com/mesh-intelligence/planstore/internal/sqlite"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

// Open validates cfg and returns the backend it names. A nil logger discards
// output.
//
// Example:
//
//	st, err := store.Open(types.Config{
//	    Backend: types.BackendJSON,
//	    DataDir: ".planstore-db",
//	}, logger)
//	defer st.Close()
func Open(cfg types.Config, logger *zap.Logger) (types.PlanStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Backend {
	case types.BackendJSON:
		return jsonstore.Open(cfg, logger)
	case types.BackendSQLite:
		return sqlite.Open(cfg, logger)
	case types.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, types.ErrBackendUnknown
	}
}
