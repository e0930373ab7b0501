package cache

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

var (
	// ErrNoLock is reported when a blocking operation presents no active lock.
	ErrNoLock = errors.New("blocking operation without a lock breaks cache atomicity")
	// ErrReadLockWrite is reported when a blocking write presents a read lock.
	ErrReadLockWrite = errors.New("blocking write with a read lock")
	// ErrInvalidUnlock is reported when Unlock names no known lock.
	ErrInvalidUnlock = errors.New("attempted to release an invalid lock")
	// ErrLockCancelled is returned by Lock when the context ends while waiting.
	ErrLockCancelled = errors.New("lock request cancelled")
)

// Diagnostic describes a lock protocol violation. Violations are advisory:
// the operation that caused one still completes.
type Diagnostic[K comparable] struct {
	Op     string
	Key    K
	LockID LockID
	Err    error
}

// Kind is a short label for the violation, used as a metric label.
func (d Diagnostic[K]) Kind() string {
	switch {
	case errors.Is(d.Err, ErrNoLock):
		return "no_lock"
	case errors.Is(d.Err, ErrReadLockWrite):
		return "read_lock_write"
	case errors.Is(d.Err, ErrInvalidUnlock):
		return "invalid_unlock"
	default:
		return "unknown"
	}
}

func (d Diagnostic[K]) level() slog.Level {
	if errors.Is(d.Err, ErrInvalidUnlock) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func defaultLogger() *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "cache",
		Level:  log.WarnLevel,
	})
	return slog.New(handler)
}

func (c *Cache[K, V]) report(d Diagnostic[K]) {
	c.logger.Log(context.Background(), d.level(), d.Err.Error(),
		"op", d.Op,
		"key", d.Key,
		"lock_id", d.LockID,
	)
	c.metrics.diagnosed(d.Kind())
	if c.onDiagnostic != nil {
		c.onDiagnostic(d)
	}
}
