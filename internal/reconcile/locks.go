package reconcile

import (
	"context"
	"sync"
)

// senderLocks serializes work per sender. Locks are created on demand and
// dropped once nobody holds or waits for them.
type senderLocks struct {
	locks map[string]*senderLock
	mu    sync.Mutex
}

type senderLock struct {
	ch   chan struct{}
	refs int
}

func newSenderLocks() *senderLocks {
	return &senderLocks{locks: make(map[string]*senderLock)}
}

// acquire blocks until the sender's lock is held or ctx is done.
func (s *senderLocks) acquire(ctx context.Context, sender string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sender]
	if !ok {
		l = &senderLock{ch: make(chan struct{}, 1)}
		s.locks[sender] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				s.unref(sender, l)
			})
		}, nil
	case <-ctx.Done():
		s.unref(sender, l)
		return nil, ctx.Err()
	}
}

func (s *senderLocks) unref(sender string, l *senderLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sender)
	}
}

func (s *senderLocks) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
