// Copyright 2017-2018 The Argo Authors
// Modifications Copyright 2024-2025 Jacob Colvin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Source:
// https://github.com/argoproj/pkg/blob/65f2d4777bfdabf8a3d649d705786567322cfa50/sync/key_lock.go

package syncs

import "github.com/MacroPower/qsync/pkg/locks"

// KeyRWLock is a per-key reader/writer lock. The key table itself is guarded
// by a [locks.ReentrantRWLock], so lookups of existing keys proceed in
// parallel. Create instances with [NewKeyRWLock].
type KeyRWLock struct {
	locks map[string]*locks.ReentrantRWLock
	guard *locks.ReentrantRWLock
	fair  bool
}

// NewKeyRWLock creates a new [KeyRWLock]. Per-key locks are fair if fair is
// set.
func NewKeyRWLock(fair bool) *KeyRWLock {
	return &KeyRWLock{
		guard: locks.NewReentrantRWLock(false),
		locks: map[string]*locks.ReentrantRWLock{},
		fair:  fair,
	}
}

func (l *KeyRWLock) getLock(key string) *locks.ReentrantRWLock {
	l.guard.RLock()
	if lock, ok := l.locks[key]; ok {
		l.guard.RUnlock()

		return lock
	}

	l.guard.RUnlock()
	l.guard.Lock()

	if lock, ok := l.locks[key]; ok {
		l.guard.Unlock()

		return lock
	}

	lock := locks.NewReentrantRWLock(l.fair)
	l.locks[key] = lock
	l.guard.Unlock()

	return lock
}

// Lock acquires the write lock for key.
func (l *KeyRWLock) Lock(key string) {
	l.getLock(key).Lock()
}

// Unlock releases the write lock for key.
func (l *KeyRWLock) Unlock(key string) {
	l.getLock(key).Unlock()
}

// RLock acquires the read lock for key.
func (l *KeyRWLock) RLock(key string) {
	l.getLock(key).RLock()
}

// RUnlock releases the read lock for key.
func (l *KeyRWLock) RUnlock(key string) {
	l.getLock(key).RUnlock()
}
