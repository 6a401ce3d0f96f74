package viewer

import "sync"

// Store holds the latest committed ViewState for readers outside the
// session event loop.
type Store struct {
	mu          sync.RWMutex
	state       ViewState
	subscribers []func(ViewState)
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the current state.
func (s *Store) Get() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Commit replaces the state and notifies subscribers outside the lock.
func (s *Store) Commit(state ViewState) {
	s.mu.Lock()
	s.state = state
	subs := make([]func(ViewState), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn to be called after every commit. fn runs on the
// committing goroutine and must not block.
func (s *Store) Subscribe(fn func(ViewState)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}
