package ledger

import (
	"sync"
	"time"

	"github.com/attestly/ledger/pkg/util"
)

// KeyLocks provides per-action-id mutual exclusion with a bounded wait.
// Every state-mutating operation acquires the action's lock before reading
// current state and releases it after committing (or failing).
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	clock util.Clock
}

type keyLock struct {
	ch   chan struct{} // capacity 1; holding the token = holding the lock
	refs int
}

func NewKeyLocks(clock util.Clock) *KeyLocks {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &KeyLocks{locks: make(map[string]*keyLock), clock: clock}
}

// Acquire takes the lock for key, waiting up to wait. On success it returns
// a release func that must be called on every exit path. On timeout it
// returns ErrBusy; retry policy belongs to the caller.
func (kl *KeyLocks) Acquire(key string, wait time.Duration) (func(), error) {
	kl.mu.Lock()
	l, ok := kl.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		kl.locks[key] = l
	}
	l.refs++
	kl.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				kl.release(key, l)
			})
		}, nil
	case <-kl.clock.After(wait):
		kl.release(key, l)
		return nil, errf(ErrBusy, "could not lock action %s within %s", key, wait)
	}
}

func (kl *KeyLocks) release(key string, l *keyLock) {
	kl.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()
}
