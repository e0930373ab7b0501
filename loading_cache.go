package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Function that gets executed by the 'Load' and 'Reload' function
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// LoadingCache is a Cache that fills itself through a LoaderFunc.
//
// Loads take the key's write lock, so the LoaderFunc runs at most once at a
// time per key and readers holding a read lock never see a value change.
type LoadingCache[K comparable, V any] struct {
	*Cache[K, V]
	loaderFunc LoaderFunc[K, V]
}

func NewLoadingCache[K comparable, V any](
	loaderFunc LoaderFunc[K, V],
	options ...Option[K, V],
) *LoadingCache[K, V] {
	return &LoadingCache[K, V]{
		Cache:      NewCache(options...),
		loaderFunc: loaderFunc,
	}
}

// Loads an item into cache using the provided LoaderFunc and returns the value.
//
// If the item is already cached, it'll return that value instead.
//
// Whenever the LoaderFunc returns an error, the value does NOT get saved.
func (c *LoadingCache[K, V]) Load(ctx context.Context, key K) (V, error) {
	lock, err := c.Lock(ctx, key, true)
	if err != nil {
		var empty V
		return empty, err
	}
	defer lock.Release()

	// nothing can change the value while the write lock is held
	if cached, found := c.Get(key, false, NoLock); found {
		return cached, nil
	}

	return c.load(ctx, key, lock.ID())
}

// Reloads an item into cache using the provided LoaderFunc and returns the new value.
//
// Whenever the LoaderFunc returns an error, the value does NOT get saved (old value remains in cache)
func (c *LoadingCache[K, V]) Reload(ctx context.Context, key K) (V, error) {
	lock, err := c.Lock(ctx, key, true)
	if err != nil {
		var empty V
		return empty, err
	}
	defer lock.Release()

	return c.load(ctx, key, lock.ID())
}

func (c *LoadingCache[K, V]) load(ctx context.Context, key K, lockID LockID) (V, error) {
	value, err := c.loaderFunc(ctx, key)
	if err != nil {
		return value, errors.Wrapf(err, "load %v", key)
	}
	c.Put(key, value, true, lockID)
	return value, nil
}

// Function that can be used inside a testing environment
func NoopLoaderFunc[K comparable, V any](_ context.Context, _ K) (V, error) {
	var empty V
	return empty, nil
}
