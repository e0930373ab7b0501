package cache

import "context"

// Mutex is a mutual exclusion lock that can be acquired with a context.
//
// Contenders park on a single channel send until the holder releases, so a
// long queue of waiters costs one blocked goroutine each and never grows a
// call stack.
type Mutex struct {
	ch chan struct{}
}

func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the mutex is free and takes it.
//
// If ctx is done first the mutex is not taken and ctx.Err() is returned.
func (m *Mutex) Acquire(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	default:
	}

	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the mutex if it is free and reports whether it did.
func (m *Mutex) TryAcquire() bool {
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the mutex, handing it to at most one waiting Acquire.
//
// Releasing a free mutex does nothing; the result reports whether this call
// freed it.
func (m *Mutex) Release() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}

func (m *Mutex) IsFree() bool {
	return len(m.ch) == 0
}
