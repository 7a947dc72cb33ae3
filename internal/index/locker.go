package index

import (
	"context"
	"sync"
	"time"

	"localfiles/internal/metrics"
)

// lockPollInterval is how often ContextLock retries a held lock.
const lockPollInterval = 5 * time.Millisecond

// Locker hands out one mutex per key.
type Locker interface {
	Lock(key string) Unlocker
	ContextLock(ctx context.Context, key string) (Unlocker, error)
}

// Unlocker releases a key lock.
type Unlocker interface {
	Unlock()
}

type keyLock struct {
	mu     sync.Mutex
	ref    uint64
	key    string
	locker *locker
}

// Unlock implements Unlocker.
func (k *keyLock) Unlock() {
	k.mu.Unlock()
	k.locker.release(k)
}

type locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewLocker returns a ref-counted keyed Locker. Entries are dropped once no
// goroutine holds or waits for them.
func NewLocker() Locker {
	return &locker{locks: make(map[string]*keyLock)}
}

func (l *locker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{key: key, locker: l}
		l.locks[key] = k
	}
	k.ref++
	return k
}

func (l *locker) release(k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k.ref--
	if k.ref == 0 {
		delete(l.locks, k.key)
	}
}

// Lock implements Locker.
func (l *locker) Lock(key string) Unlocker {
	start := time.Now()
	k := l.acquire(key)
	k.mu.Lock()
	metrics.StoreLockWaitDuration.Observe(time.Since(start).Seconds())
	return k
}

// ContextLock implements Locker.
func (l *locker) ContextLock(ctx context.Context, key string) (Unlocker, error) {
	start := time.Now()
	k := l.acquire(key)
	if k.mu.TryLock() {
		metrics.StoreLockWaitDuration.Observe(time.Since(start).Seconds())
		return k, nil
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.release(k)
			return nil, ctx.Err()
		case <-ticker.C:
			if k.mu.TryLock() {
				metrics.StoreLockWaitDuration.Observe(time.Since(start).Seconds())
				return k, nil
			}
		}
	}
}

// size returns the number of live key locks.
func (l *locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
