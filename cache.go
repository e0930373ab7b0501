package cache

import (
	"context"
	"log/slog"
	"sync"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"golang.org/x/exp/maps"
)

type Option[K comparable, V any] func(c *Cache[K, V])

type ICache[K comparable, V any] interface {
	// Reports whether the key is stored, regardless of any lock.
	Has(key K) bool

	// Returns the stored value, or false if the key is absent.
	//
	// With blocking set, lockID should name an active lock on the key.
	// A missing lock is reported but the read still happens.
	Get(key K, blocking bool, lockID LockID) (V, bool)

	// Stores the value. With blocking set, lockID should name an active write lock.
	Put(key K, value V, blocking bool, lockID LockID)

	// Removes the key together with its lock manager.
	Delete(key K, blocking bool, lockID LockID)

	// Drops every value and every lock manager without checking locks.
	//
	// Only safe when nothing holds or waits for a lock.
	Clear()

	// Requests a read or write lock on the key and blocks until it is granted.
	Lock(ctx context.Context, key K, isWrite bool) (*Lock, error)

	// Releases the lock with the given id. Unknown ids are reported and ignored.
	Unlock(key K, lockID LockID)

	// Looks up a held or waiting lock without changing it.
	GetLock(key K, lockID LockID) (*Lock, bool)

	Count() int
	Keys() []K
}

// Cache is a key/value store where every key has its own read/write lock
// scheduler.
//
// Lock checks on blocking operations are advisory: violations are logged
// and reported, never rejected.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	data     *csmap.CsMap[K, V]
	managers map[K]*LockManager

	logger       *slog.Logger
	metrics      *Metrics
	onDiagnostic func(Diagnostic[K])
}

func NewCache[K comparable, V any](options ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		data:     csmap.Create[K, V](),
		managers: make(map[K]*LockManager),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	return c
}

func (c *Cache[K, V]) Has(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Has(key)
}

func (c *Cache[K, V]) Get(key K, blocking bool, lockID LockID) (V, bool) {
	if blocking {
		c.checkLock("get", key, lockID, false)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Load(key)
}

func (c *Cache[K, V]) Put(key K, value V, blocking bool, lockID LockID) {
	if blocking {
		c.checkLock("put", key, lockID, true)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.data.Store(key, value)
}

func (c *Cache[K, V]) Delete(key K, blocking bool, lockID LockID) {
	if blocking {
		c.checkLock("delete", key, lockID, true)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Delete(key)
	if _, found := c.managers[key]; found {
		delete(c.managers, key)
		c.metrics.managersRemoved(1)
	}
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.managersRemoved(len(c.managers))
	c.data = csmap.Create[K, V]()
	c.managers = make(map[K]*LockManager)
}

func (c *Cache[K, V]) Lock(ctx context.Context, key K, isWrite bool) (*Lock, error) {
	lock, err := c.managerFor(key).AcquireLock(ctx, isWrite)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("lock acquired", "key", key, "lock_id", lock.ID(), "write", isWrite)
	return lock, nil
}

func (c *Cache[K, V]) Unlock(key K, lockID LockID) {
	lock, found := c.GetLock(key, lockID)
	if !found {
		c.report(Diagnostic[K]{Op: "unlock", Key: key, LockID: lockID, Err: ErrInvalidUnlock})
		return
	}
	lock.Release()
	c.logger.Debug("lock released", "key", key, "lock_id", lockID)
}

func (c *Cache[K, V]) GetLock(key K, lockID LockID) (*Lock, bool) {
	mgr, found := c.manager(key)
	if !found {
		return nil, false
	}
	return mgr.FindLock(lockID)
}

func (c *Cache[K, V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Count()
}

func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, c.data.Count())
	c.data.Range(func(key K, _ V) (stop bool) {
		keys = append(keys, key)
		return false
	})
	return keys
}

// LockedKeys returns the keys that currently own a lock manager.
func (c *Cache[K, V]) LockedKeys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Keys(c.managers)
}

func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.logger = logger
	}
}

func WithMetrics[K comparable, V any](metrics *Metrics) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.metrics = metrics
	}
}

// WithOnDiagnostic registers a function that receives every lock protocol
// violation, in addition to it being logged.
func WithOnDiagnostic[K comparable, V any](fn func(Diagnostic[K])) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onDiagnostic = fn
	}
}

/*
 * @Internal
 */

func (c *Cache[K, V]) manager(key K) (*LockManager, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mgr, found := c.managers[key]
	return mgr, found
}

func (c *Cache[K, V]) managerFor(key K) *LockManager {
	if mgr, found := c.manager(key); found {
		return mgr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	mgr, found := c.managers[key]
	if !found {
		mgr = newLockManager(c.metrics)
		c.managers[key] = mgr
		c.metrics.managerAdded()
	}
	return mgr
}

func (c *Cache[K, V]) checkLock(op string, key K, lockID LockID, isWrite bool) {
	diagnose := func(err error) {
		c.report(Diagnostic[K]{Op: op, Key: key, LockID: lockID, Err: err})
	}

	lock, found := c.GetLock(key, lockID)
	if !found || lock.IsFree() {
		diagnose(ErrNoLock)
		return
	}
	if isWrite && !lock.IsWrite() {
		diagnose(ErrReadLockWrite)
		return
	}
	if !isWrite && lock.IsWrite() {
		c.logger.Debug("write lock used for a read", "op", op, "key", key, "lock_id", lockID)
	}
}
