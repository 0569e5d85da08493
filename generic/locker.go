package generic

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// =============================================================================
// KEY LOCKER - Per-key mutual exclusion with a bounded wait
// =============================================================================

// DefaultLockTimeout bounds how long Lock waits before giving up.
const DefaultLockTimeout = 2 * time.Second

// KeyLocker serializes work per key (a request ID, an employee ID). Unrelated
// keys never block each other. A caller that cannot get the lock within
// Timeout receives a *TransientError.
type KeyLocker struct {
	Timeout time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyLocker(timeout time.Duration) *KeyLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &KeyLocker{Timeout: timeout, locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free, the timeout elapses, or ctx is done.
// The returned func releases the lock and must be called exactly once.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl := l.acquireRef(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	if err := kl.sem.Acquire(waitCtx, 1); err != nil {
		l.releaseRef(key, kl)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Key: key, Err: errors.New("lock wait timed out")}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.sem.Release(1)
			l.releaseRef(key, kl)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (l *KeyLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyLocker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyLocker) releaseRef(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
