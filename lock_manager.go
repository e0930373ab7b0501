package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// LockManager schedules the read and write locks of a single key.
//
// Locks that are granted sit in held; the rest queue in waiting in arrival
// order. When a held lock is released the first waiting writer is promoted
// on its own, or, if no writer waits, every waiting reader at once. Writers
// are preferred, so a queued reader may be overtaken by writers that
// arrive after it.
type LockManager struct {
	mu      sync.Mutex
	held    []*Lock
	waiting []*Lock
	nextID  LockID

	metrics *Metrics
}

func newLockManager(metrics *Metrics) *LockManager {
	return &LockManager{metrics: metrics}
}

// AcquireLock requests a lock and blocks until it is active.
//
// A write lock is granted straight away when nothing is held, a read lock
// when no writer is held. Otherwise the request queues until promoted or
// until ctx is done, in which case it is withdrawn.
func (m *LockManager) AcquireLock(ctx context.Context, isWrite bool) (*Lock, error) {
	start := time.Now()
	m.metrics.requested(isWrite)

	m.mu.Lock()
	m.nextID++
	lock := newLock(m.nextID, isWrite, m.onRelease)
	activated, _ := lock.activated.wait()

	if m.admits(isWrite) {
		m.held = append(m.held, lock)
		lock.activate()
		m.mu.Unlock()
		m.metrics.waited(isWrite, time.Since(start))
		return lock, nil
	}

	m.waiting = append(m.waiting, lock)
	m.mu.Unlock()
	m.metrics.queued(isWrite)

	select {
	case <-activated:
		m.metrics.waited(isWrite, time.Since(start))
		return lock, nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	withdrawn := lo.Contains(m.waiting, lock)
	if withdrawn {
		m.waiting = lo.Without(m.waiting, lock)
	}
	m.mu.Unlock()

	if !withdrawn {
		// promoted while giving up
		<-activated
		lock.Release()
	}
	m.metrics.cancelled(isWrite)

	return nil, errors.Mark(errors.Wrapf(ctx.Err(), "lock %d", lock.id), ErrLockCancelled)
}

// FindLock looks a lock up by id among the held, then the waiting locks.
func (m *LockManager) FindLock(id LockID) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLock(id)
}

// HasWriteLock reports whether a writer is held or waiting.
func (m *LockManager) HasWriteLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.ContainsBy(m.held, isWriteLock) || lo.ContainsBy(m.waiting, isWriteLock)
}

// HasReadLock reports whether any lock is held or waiting. Every lock,
// write locks included, grants read access.
func (m *LockManager) HasReadLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)+len(m.waiting) != 0
}

// Held returns the ids of the held locks in grant order.
func (m *LockManager) Held() []LockID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.held, lockID)
}

// Waiting returns the ids of the waiting locks in arrival order.
func (m *LockManager) Waiting() []LockID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.waiting, lockID)
}

func (m *LockManager) admits(isWrite bool) bool {
	if isWrite {
		return len(m.held) == 0
	}
	return !lo.ContainsBy(m.held, isWriteLock)
}

func (m *LockManager) findLock(id LockID) (*Lock, bool) {
	byID := func(l *Lock) bool { return l.id == id }
	if lock, ok := lo.Find(m.held, byID); ok {
		return lock, true
	}
	return lo.Find(m.waiting, byID)
}

// onRelease runs on every release of a held lock and promotes waiters.
func (m *LockManager) onRelease(lock *Lock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.held = lo.Without(m.held, lock)
	if len(m.waiting) == 0 {
		return
	}

	if writer, _, ok := lo.FindIndexOf(m.waiting, isWriteLock); ok {
		// the writer has to wait for the last reader to leave
		if len(m.held) != 0 {
			return
		}
		writer.activate()
		m.waiting = lo.Without(m.waiting, writer)
		m.held = append(m.held, writer)
		m.metrics.promoted(true)
		return
	}

	if lo.ContainsBy(m.held, isWriteLock) {
		return
	}
	for _, reader := range m.waiting {
		reader.activate()
		m.held = append(m.held, reader)
		m.metrics.promoted(false)
	}
	m.waiting = nil
}

func isWriteLock(l *Lock) bool {
	return l.isWrite
}

func lockID(l *Lock, _ int) LockID {
	return l.id
}
