// Package sqlite implements the SQLite plan store backend. The collection is
// kept as one row per plan document in plans.db; a full replace runs in a
// single SQL transaction and is mirrored to plans.jsonl. Cross-process access
// is serialized with the same advisory lock discipline as the JSON store, on
// plans.db.lock.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/planstore/internal/lock"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

// File names inside the data directory.
const (
	DatabaseName = "plans.db"
	LockName     = DatabaseName + ".lock"
)

// Backend implements types.PlanStore on SQLite.
type Backend struct {
	mu         sync.RWMutex
	closed     bool
	db         *sql.DB
	path       string
	lockPath   string
	mirrorPath string
	locker     *lock.Locker
	logger     *zap.Logger
}

// Open creates the data directory if needed, opens plans.db and applies the
// schema.
func Open(cfg types.Config, logger *zap.Logger) (*Backend, error) {
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

	dbPath := filepath.Join(dataDir, DatabaseName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// One connection keeps the busy_timeout pragma in effect for every query.
	db.SetMaxOpenConns(1)

	timeout := cfg.EffectiveLockTimeout()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	b := &Backend{
		db:         db,
		path:       dbPath,
		lockPath:   filepath.Join(dataDir, LockName),
		mirrorPath: filepath.Join(dataDir, MirrorName),
		locker:     lock.New(timeout, logger),
		logger:     logger.With(zap.String("store", dbPath)),
	}
	if err := b.maybeRestore(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// maybeRestore reloads the mirror when plans.db has no rows but plans.jsonl
// exists.
func (b *Backend) maybeRestore(ctx context.Context) error {
	var count int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&count); err != nil {
		return fmt.Errorf("counting plans: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := os.Stat(b.mirrorPath); err != nil {
		return nil
	}
	return b.withLock(ctx, func() error {
		return b.restoreFromMirror(ctx)
	})
}

// Path returns the location of the database file.
func (b *Backend) Path() string {
	return b.path
}

// ReadAll returns every stored plan in position order. A row whose document
// cannot be decoded yields an error wrapping types.ErrCorruptStore.
func (b *Backend) ReadAll(ctx context.Context) ([]types.Plan, error) {
	var plans []types.Plan
	err := b.withLock(ctx, func() error {
		var err error
		plans, err = b.readPlans(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// WriteAll replaces every row with plans in one transaction.
func (b *Backend) WriteAll(ctx context.Context, plans []types.Plan) error {
	return b.withLock(ctx, func() error {
		return b.replacePlans(ctx, plans)
	})
}

// Update runs a read-modify-write cycle under one lock span.
func (b *Backend) Update(ctx context.Context, fn func([]types.Plan) ([]types.Plan, error)) error {
	return b.withLock(ctx, func() error {
		plans, err := b.readPlans(ctx)
		if errors.Is(err, types.ErrCorruptStore) {
			b.logger.Warn("plan store is corrupt; treating as empty", zap.Error(err))
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
		return b.replacePlans(ctx, next)
	})
}

// Close closes the database. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close %s: %w", b.path, err)
	}
	return nil
}

func (b *Backend) withLock(ctx context.Context, fn func() error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return types.ErrStoreClosed
	}

	f, err := lock.OpenFile(b.lockPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return b.locker.WithLock(ctx, f, fn)
}

func (b *Backend) readPlans(ctx context.Context) ([]types.Plan, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT plan_id, document FROM plans ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	plans := []types.Plan{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		var p types.Plan
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("%w: plan %s: %v", types.ErrCorruptStore, id, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}
	return plans, nil
}

func (b *Backend) replacePlans(ctx context.Context, plans []types.Plan) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM plans"); err != nil {
		return fmt.Errorf("clearing plans: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO plans (plan_id, position, document, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	docs := make([]json.RawMessage, 0, len(plans))
	for i, p := range plans {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding plan %s: %w", p.PlanID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.PlanID, i, string(doc), now); err != nil {
			return fmt.Errorf("inserting plan %s: %w", p.PlanID, err)
		}
		docs = append(docs, doc)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// The mirror never runs ahead of the database. A failed mirror write
	// leaves it behind until the next successful write replaces it whole.
	if err := writeJSONL(b.mirrorPath, docs); err != nil {
		b.logger.Warn("writing plan mirror failed; it lags the database",
			zap.String("mirror", b.mirrorPath), zap.Error(err))
	}
	return nil
}
