package coupler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReadTimeout is wrapped by every TimeoutError.
	ErrReadTimeout = errors.New("coupler: read i/o timeout")

	// ErrClosed is returned by operations on a handle after Shutdown.
	ErrClosed = errors.New("coupler: handle closed")

	errUnexpectedExit = errors.New("unexpected exit")
)

// ProcessSpawnError means the engine executable could not be started.
type ProcessSpawnError struct {
	Path string
	Err  error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("coupler: spawn %s: %v", e.Path, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }

// ProcessCrashError means the engine went away while the handle was in use.
type ProcessCrashError struct {
	Name string
	Err  error
}

func (e *ProcessCrashError) Error() string {
	return fmt.Sprintf("coupler: engine %s exited: %v", e.Name, e.Err)
}

func (e *ProcessCrashError) Unwrap() error { return e.Err }

// TimeoutError means the engine did not produce an expected reply in time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("coupler: %s timed out after %v", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrReadTimeout }
