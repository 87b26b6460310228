// Package lock serializes readers and writers of a plan store with an
// exclusive advisory file lock and a bounded wait.
//
// Unix platforms use flock(2); Windows uses a LockFileEx range lock. On any
// other platform locking is unavailable and WithLock runs the critical
// section unserialized after logging a warning once per Locker.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// Poll interval bounds while waiting for a held lock.
const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 250 * time.Millisecond
)

// Locker acquires exclusive locks with a fixed timeout. Locks are not
// re-entrant: nesting WithLock on the same file from one process deadlocks
// until the timeout fires.
type Locker struct {
	timeout  time.Duration
	logger   *zap.Logger
	warnOnce sync.Once
}

// New returns a Locker that waits at most timeout for a lock. A non-positive
// timeout selects types.DefaultLockTimeout. A nil logger discards output.
func New(timeout time.Duration, logger *zap.Logger) *Locker {
	if timeout <= 0 {
		timeout = types.DefaultLockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{timeout: timeout, logger: logger}
}

// Timeout returns the bounded wait applied by WithLock.
func (l *Locker) Timeout() time.Duration {
	return l.timeout
}

// Supported reports whether this platform provides a locking strategy.
func Supported() bool {
	return supported
}

// WithLock acquires an exclusive lock on f, runs fn and releases the lock on
// every exit path, including a panic in fn. If the lock is not acquired
// within the timeout the returned error wraps types.ErrLockTimeout and fn is
// not called.
func (l *Locker) WithLock(ctx context.Context, f *os.File, fn func() error) error {
	if !supported {
		l.warnOnce.Do(func() {
			l.logger.Warn("advisory file locking is unavailable; plan store access is NOT serialized",
				zap.String("os", runtime.GOOS),
				zap.String("file", f.Name()))
		})
		return fn()
	}

	if err := l.acquire(ctx, f); err != nil {
		return err
	}
	defer func() {
		if err := unlock(f); err != nil {
			l.logger.Warn("release lock", zap.String("file", f.Name()), zap.Error(err))
		}
	}()
	return fn()
}

// acquire tries the lock immediately, then polls with exponential backoff
// until the lock is free, the timeout elapses, or ctx is done.
func (l *Locker) acquire(ctx context.Context, f *os.File) error {
	ok, err := tryLock(f)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	if ok {
		return nil
	}

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()

	backoff := minBackoff
	for {
		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("lock %s: %w", f.Name(), ctx.Err())
		case <-deadline.C:
			wait.Stop()
			return fmt.Errorf("lock %s after %v: %w", f.Name(), l.timeout, types.ErrLockTimeout)
		case <-wait.C:
		}

		ok, err = tryLock(f)
		if err != nil {
			return fmt.Errorf("lock %s: %w", f.Name(), err)
		}
		if ok {
			return nil
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// OpenFile opens (creating if needed) the lock file at path. The parent
// directory is created when missing. The caller closes the file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}
