package cache

import "context"

// LockID identifies a lock within the numbering sequence of a single key.
type LockID uint64

// NoLock is passed to blocking operations by callers that hold no lock.
// Issued ids start at 1.
const NoLock LockID = 0

// Lock is a read or write request against one key of a Cache.
//
// A Lock is Requested until its manager grants it, Active until the holder
// calls Release, and Released afterwards.
type Lock struct {
	id      LockID
	isWrite bool
	mu      *Mutex

	activated *signal
	released  *signal

	onRelease func(*Lock)
}

func newLock(id LockID, isWrite bool, onRelease func(*Lock)) *Lock {
	return &Lock{
		id:        id,
		isWrite:   isWrite,
		mu:        NewMutex(),
		activated: newSignal(),
		released:  newSignal(),
		onRelease: onRelease,
	}
}

func (l *Lock) ID() LockID {
	return l.id
}

func (l *Lock) IsWrite() bool {
	return l.isWrite
}

// IsFree reports whether the lock is not currently active.
func (l *Lock) IsFree() bool {
	return l.mu.IsFree()
}

// Activated returns a channel that is closed when the lock becomes active.
func (l *Lock) Activated() <-chan struct{} {
	ch, _ := l.activated.wait()
	return ch
}

// Released returns a channel that is closed when the active lock is released.
func (l *Lock) Released() <-chan struct{} {
	ch, _ := l.released.wait()
	return ch
}

// Release gives up an active lock and lets the key's manager promote the
// next waiter(s). Releasing a lock that is not active does nothing.
func (l *Lock) Release() {
	if !l.mu.Release() {
		return
	}
	if l.onRelease != nil {
		l.onRelease(l)
	}
	l.released.fire()
}

func (l *Lock) acquire(ctx context.Context) error {
	if err := l.mu.Acquire(ctx); err != nil {
		return err
	}
	l.activated.fire()
	return nil
}

// activate is used by the manager for a lock whose mutex nobody else ever
// contends, so it cannot block.
func (l *Lock) activate() {
	_ = l.acquire(context.Background())
}
