package syncs

import (
	"context"
	"sync"

	"github.com/MacroPower/qsync/pkg/locks"
)

// KeyLocker provides per-key mutual exclusion.
// See [KeyLock] and [KeyRWLock] for implementations.
type KeyLocker interface {
	Lock(key string)
	Unlock(key string)
}

var (
	_ KeyLocker = (*KeyLock)(nil)
	_ KeyLocker = (*KeyRWLock)(nil)
)

// KeyLock is a per-key reentrant lock that allows independent keys to be
// locked concurrently while serializing access to the same key. Create
// instances with [NewKeyLock], or use the zero value directly.
//
// Each key is held by a goroutine, so a key must be unlocked by the same
// goroutine that locked it. Unlocking from another goroutine panics with an
// error wrapping [syncerrors.ErrIllegalState].
type KeyLock struct {
	locks map[string]*locks.ReentrantLock
	mu    sync.Mutex
	fair  bool
}

// NewKeyLock creates a new [KeyLock]. Per-key locks are fair if fair is set.
func NewKeyLock(fair bool) *KeyLock {
	return &KeyLock{
		locks: make(map[string]*locks.ReentrantLock),
		fair:  fair,
	}
}

func (kl *KeyLock) getLock(key string) *locks.ReentrantLock {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.locks == nil {
		kl.locks = make(map[string]*locks.ReentrantLock)
	}

	l, ok := kl.locks[key]
	if !ok {
		l = locks.NewReentrantLock(kl.fair)
		kl.locks[key] = l
	}

	return l
}

// Lock acquires the lock for the given key, blocking if another goroutine
// holds it.
func (kl *KeyLock) Lock(key string) {
	kl.getLock(key).Lock()
}

// LockContext acquires the lock for the given key, returning an error
// wrapping [syncerrors.ErrInterrupted] if ctx ends first.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	return kl.getLock(key).LockContext(ctx)
}

// TryLock acquires the lock for the given key only if it is free or already
// held by the calling goroutine.
func (kl *KeyLock) TryLock(key string) bool {
	return kl.getLock(key).TryLock()
}

// Unlock releases one hold of the lock for the given key.
func (kl *KeyLock) Unlock(key string) {
	kl.getLock(key).Unlock()
}

// Len returns the number of keys that have been locked.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	return len(kl.locks)
}
