//
// Copyright 2024-2026 sandboxrt. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package conc

import (
	"runtime"
	"sync"
)

// AdaptiveLock spins briefly before parking, trading a little CPU for
// avoiding a blocking handoff on short critical sections -- the scheduler
// queues and block tables both hold their lock for only a few instructions
// at a time.
type AdaptiveLock struct {
	mu       sync.Mutex
	maxSpins int
}

// NewAdaptiveLock builds a lock that spins up to maxSpins times before
// falling back to a blocking mutex acquisition.
func NewAdaptiveLock(maxSpins int) *AdaptiveLock {
	if maxSpins <= 0 {
		maxSpins = 64
	}
	return &AdaptiveLock{maxSpins: maxSpins}
}

// Lock acquires the lock, spinning first and parking if the spin window
// elapses without success.
func (l *AdaptiveLock) Lock() {
	for i := 0; i < l.maxSpins; i++ {
		if l.mu.TryLock() {
			return
		}
		runtime.Gosched()
	}
	l.mu.Lock()
}

// Unlock releases the lock.
func (l *AdaptiveLock) Unlock() {
	l.mu.Unlock()
}
