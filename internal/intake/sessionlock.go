package intake

import (
	"context"
	"sync"
)

// sessionLocks serialises uploads per session. Waiters give up when their
// context ends.
type sessionLocks struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{slots: make(map[string]*slot)}
}

func (s *sessionLocks) acquire(ctx context.Context, sessionID string) (release func(), err error) {
	s.mu.Lock()
	sl, ok := s.slots[sessionID]
	if !ok {
		sl = &slot{sem: make(chan struct{}, 1)}
		s.slots[sessionID] = sl
	}
	sl.refs++
	s.mu.Unlock()

	select {
	case sl.sem <- struct{}{}:
		return func() {
			<-sl.sem
			s.drop(sessionID, sl)
		}, nil
	case <-ctx.Done():
		s.drop(sessionID, sl)
		return nil, ctx.Err()
	}
}

func (s *sessionLocks) drop(sessionID string, sl *slot) {
	s.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, sessionID)
	}
	s.mu.Unlock()
}

func (s *sessionLocks) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
