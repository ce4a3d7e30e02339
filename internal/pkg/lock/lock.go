// Package lock provides per-key locking used to emulate row locks in the
// in-memory store.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired within the timeout period.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyMutex is a context-aware mutex with a reference count so idle entries
// can be dropped from the map.
type keyMutex struct {
	sem      chan struct{}
	refCount int
}

// KeyLock provides one lock per key (account id, request id).
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// New creates a new KeyLock instance.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// acquireRef retrieves or creates the mutex for key and pins it.
func (kl *KeyLock) acquireRef(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{sem: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

// releaseRef unpins the mutex for key, dropping it once nobody holds or waits on it.
func (kl *KeyLock) releaseRef(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refCount--
	if m.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key, blocking until it is available or ctx is done.
func (kl *KeyLock) Lock(ctx context.Context, key string) error {
	m := kl.acquireRef(key)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.releaseRef(key, m)
		return ctx.Err()
	}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.sem:
		kl.releaseRef(key, m)
	default:
	}
}

// LockWithTimeout acquires the lock for key, giving up after timeout.
func (kl *KeyLock) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := kl.Lock(timeoutCtx, key); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	return nil
}
