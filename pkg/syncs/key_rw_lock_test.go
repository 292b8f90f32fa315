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
// https://github.com/argoproj/pkg/blob/65f2d4777bfdabf8a3d649d705786567322cfa50/sync/key_lock_test.go

package syncs_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MacroPower/qsync/pkg/syncs"
)

type lockPair struct {
	lock, unlock func(string)
}

// holdThenRelease holds "my-key" with held and starts a goroutine that takes
// it with taken. If blocks is set, the goroutine must wait for the release;
// otherwise it must get through while the key is still held.
func holdThenRelease(t *testing.T, held, taken lockPair, blocks bool) {
	t.Helper()

	held.lock("my-key")

	var (
		unlocked atomic.Bool
		wg       sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()

		taken.lock("my-key")
		unlocked.Store(true)
		taken.unlock("my-key")
	}()

	if blocks {
		time.Sleep(10 * time.Millisecond)
		assert.False(t, unlocked.Load())
	} else {
		wg.Wait()
	}

	held.unlock("my-key")

	wg.Wait()

	assert.True(t, unlocked.Load())
}

func TestKeyRWLock(t *testing.T) {
	t.Parallel()

	for _, fair := range []bool{false, true} {
		l := syncs.NewKeyRWLock(fair)
		write := lockPair{lock: l.Lock, unlock: l.Unlock}
		read := lockPair{lock: l.RLock, unlock: l.RUnlock}

		holdThenRelease(t, write, write, true)
		holdThenRelease(t, write, read, true)
		holdThenRelease(t, read, write, true)
		holdThenRelease(t, read, read, false)
	}
}
