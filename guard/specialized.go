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

package guard

import "github.com/sandboxrt/kerneld/domain"

// MemoryGuard releases a single allocated address back to its owning
// manager on Release. dealloc is supplied by memory.Manager.
type MemoryGuard struct {
	*Guard
	Address domain.Address
	Size    uint64
	Pid     domain.Pid
}

func NewMemoryGuard(addr domain.Address, size uint64, pid domain.Pid, dealloc func()) *MemoryGuard {
	return &MemoryGuard{Guard: New(dealloc), Address: addr, Size: size, Pid: pid}
}

// IPCGuard releases a pipe, queue, shared-memory attachment or ring
// registration on Release.
type IPCGuard struct {
	*Guard
	Resource string
}

func NewIPCGuard(resource string, release func()) *IPCGuard {
	return &IPCGuard{Guard: New(release), Resource: resource}
}

// Operation is one step accumulated by a TxnGuard.
type Operation struct {
	Name string
	Do   func() error
	Undo func()
}

// TxnGuard accumulates operations and either commits them atomically or
// rolls every applied one back, either explicitly or on Release if Commit
// was never called, per spec.md section 5's transaction-guard semantics.
type TxnGuard struct {
	*Guard
	ops       []Operation
	committed bool
	applied   []Operation
}

func NewTxnGuard() *TxnGuard {
	t := &TxnGuard{}
	t.Guard = New(t.rollback)
	return t
}

// Add appends an operation to the transaction.
func (t *TxnGuard) Add(op Operation) {
	t.ops = append(t.ops, op)
}

// Commit runs every accumulated operation in order, undoing everything
// already applied and returning the first error if one fails.
func (t *TxnGuard) Commit() error {
	for _, op := range t.ops {
		if err := op.Do(); err != nil {
			for i := len(t.applied) - 1; i >= 0; i-- {
				if t.applied[i].Undo != nil {
					t.applied[i].Undo()
				}
			}
			t.applied = nil
			return err
		}
		t.applied = append(t.applied, op)
	}
	t.committed = true
	return nil
}

func (t *TxnGuard) rollback() {
	if t.committed {
		return
	}
	for i := len(t.applied) - 1; i >= 0; i-- {
		if t.applied[i].Undo != nil {
			t.applied[i].Undo()
		}
	}
	t.applied = nil
}

// CompositeGuard releases a fixed set of sub-guards in reverse acquisition
// order, mirroring how process.Terminate tears down resources.
type CompositeGuard struct {
	*Guard
	children []interface{ Release() }
}

func NewCompositeGuard(children ...interface{ Release() }) *CompositeGuard {
	c := &CompositeGuard{children: children}
	c.Guard = New(c.releaseChildren)
	return c
}

func (c *CompositeGuard) releaseChildren() {
	for i := len(c.children) - 1; i >= 0; i-- {
		c.children[i].Release()
	}
}

// ObservableGuard invokes an observer callback with the guard's final state
// when released, used to drive metrics (e.g. guard-held duration) without
// the metrics package needing to embed guard logic itself.
type ObservableGuard struct {
	*Guard
	Name    string
	observe func(name string, poisoned bool)
}

func NewObservableGuard(name string, release func(), observe func(name string, poisoned bool)) *ObservableGuard {
	og := &ObservableGuard{Name: name, observe: observe}
	og.Guard = New(func() {
		if release != nil {
			release()
		}
		// Release only ever runs the callback from the Locked state (a
		// Poisoned guard's Release is a no-op), so this path is always a
		// clean release; poisoning is reported separately below.
		if observe != nil {
			observe(name, false)
		}
	})
	return og
}

// Poison marks the guard Poisoned and reports it to the observer, since a
// poisoned guard's Release never runs its callback.
func (og *ObservableGuard) Poison(reason string) {
	og.Guard.Poison(reason)
	if og.observe != nil {
		og.observe(og.Name, true)
	}
}
