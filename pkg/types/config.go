package types

import (
	"errors"
	"time"
)

// Config selects a plan store backend and its parameters.
type Config struct {
	Backend     string        `json:"backend" yaml:"backend"`
	DataDir     string        `json:"data_dir" yaml:"data_dir"`
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`
}

// Supported backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultLockTimeout bounds the wait for the store lock when Config leaves
// LockTimeout unset.
const DefaultLockTimeout = 10 * time.Second

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrLockTimeoutInvalid = errors.New("lock timeout must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendJSON:   true,
	BackendSQLite: true,
	BackendMemory: true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.LockTimeout < 0 {
		return ErrLockTimeoutInvalid
	}
	return nil
}

// EffectiveLockTimeout returns LockTimeout, or DefaultLockTimeout when unset.
func (c Config) EffectiveLockTimeout() time.Duration {
	if c.LockTimeout == 0 {
		return DefaultLockTimeout
	}
	return c.LockTimeout
}
