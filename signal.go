package cache

import "sync"

// signal is a one-shot completion token that renews itself after firing.
//
// Each firing closes the channel of the current generation and installs a
// fresh one, so an observer only ever completes on the generation it
// captured.
type signal struct {
	mu  sync.Mutex
	gen uint64
	ch  chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// wait returns the channel that the next firing closes, with its generation.
func (s *signal) wait() (<-chan struct{}, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch, s.gen
}

func (s *signal) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.gen++
}

// fired reports whether generation gen has completed.
func (s *signal) fired(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen > gen
}
