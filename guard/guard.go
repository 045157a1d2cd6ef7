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

// Package guard implements the kernel's RAII-style resource guards: every
// scoped acquisition returns a value whose Release runs exactly once across
// every exit path (normal return, error, or recovered panic), per spec.md
// sections 5 and 9. Guards carry a type-state marker (Unlocked/Locked/
// Poisoned) rather than encoding it at the type level, to keep call sites
// close to the plain-struct style this codebase otherwise uses.
package guard

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the guard's type-state marker.
type State int

const (
	Unlocked State = iota
	Locked
	Poisoned
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	case Poisoned:
		return "poisoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Guard is the common base embedded by every specialized guard type. release
// is the cleanup callback; it runs at most once.
type Guard struct {
	mu            sync.Mutex
	state         State
	release       func()
	poisonReason  string
	releasedEarly bool
}

// New constructs a Locked guard whose Release invokes onRelease exactly
// once.
func New(onRelease func()) *Guard {
	return &Guard{state: Locked, release: onRelease}
}

// State returns the guard's current type-state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Release runs the cleanup callback if the guard is still Locked. Calling
// Release on an already-released or poisoned guard is a no-op, which is
// what makes dropping a guard after an explicit ReleaseEarly safe: the
// destructor path becomes a no-op, per spec.md section 8's RAII invariant.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

func (g *Guard) releaseLocked() {
	if g.state != Locked {
		return
	}
	g.state = Unlocked
	if g.release != nil {
		g.release()
	}
}

// ReleaseEarly runs cleanup immediately at the call site; the eventual
// deferred Release() becomes a no-op.
func (g *Guard) ReleaseEarly() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releasedEarly = true
	g.releaseLocked()
}

// Poison marks the guard Poisoned with reason, fatal to the affected scope
// until explicitly Recovered. A poisoned guard's Release is a no-op: the
// resource is left exactly as Poison found it for inspection/recovery.
func (g *Guard) Poison(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Poisoned {
		return
	}
	g.state = Poisoned
	g.poisonReason = reason
	logrus.Warnf("guard poisoned: %s", reason)
}

// Recover clears a Poisoned guard back to Locked, recording why recovery
// happened. It is the only way out of Poisoned besides constructing a new
// guard.
func (g *Guard) Recover(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Poisoned {
		return fmt.Errorf("guard: cannot recover a %s guard", g.state)
	}
	logrus.Infof("guard recovered (was poisoned: %s): %s", g.poisonReason, reason)
	g.state = Locked
	g.poisonReason = ""
	return nil
}

// Recoverable runs fn, poisoning the guard with the panic's message if fn
// panics, and re-panicking afterward so the caller's own recover (if any)
// still observes the original panic.
func (g *Guard) Recoverable(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.Poison(fmt.Sprintf("panic: %v", r))
			panic(r)
		}
	}()
	fn()
}
