package cli

import (
	"errors"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// userErrors are failures caused by the invocation rather than the system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrDuplicateID,
	types.ErrInvalidData,
	types.ErrInvalidStatus,
	types.ErrInvalidTransition,
	types.ErrUnknownField,
	types.ErrImmutableField,
	types.ErrInvalidContent,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrLockTimeoutInvalid,
}

// exitCode maps err to a process exit code. Errors raised before any command
// ran (unknown commands, bad flags, wrong argument counts) are user errors.
// Lock timeouts, corrupt stores and I/O failures are system errors.
func exitCode(err error, started bool) int {
	if err == nil {
		return exitSuccess
	}
	if !started {
		return exitUserError
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
