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

package syscalls

import (
	"fmt"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/sandboxrt/kerneld/domain"
)

// Handler serves every operation under one dotted-name prefix (a "family"):
// "fs." for filesystem operations, "process." for lifecycle operations, and
// so on. Mode determines how the executor dispatches into it.
type Handler interface {
	// Prefix is the dotted family prefix this handler claims, e.g. "fs.".
	Prefix() string
	Mode() ExecutionMode
	// Handle runs one syscall already confirmed to match Prefix.
	Handle(pid domain.Pid, call Syscall) (Result, error)
}

// Registry is the kernel's ordered handler database: a radix tree indexed
// by dotted-name prefix, so dispatch is a single longest-prefix lookup
// rather than a linear walk down a handler list.
type Registry struct {
	mu   sync.RWMutex
	tree *iradix.Tree
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tree: iradix.New()}
}

// Register installs h under its Prefix, replacing any existing handler
// registered there.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree, _, _ = r.tree.Insert([]byte(h.Prefix()), h)
}

// Lookup finds the handler whose prefix is the longest match for name,
// i.e. the handler registered to claim it. An all-miss reports ok=false,
// which the executor surfaces as ErrUnsupportedSyscall.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, v, ok := r.tree.Root().LongestPrefix([]byte(name))
	if !ok {
		return nil, false
	}
	return v.(Handler), true
}

// Len reports how many handlers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Len()
}

// unsupportedSyscallError names the specific call that matched no handler,
// wrapping the closed ErrUnsupportedSyscall sentinel.
func unsupportedSyscallError(name string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedSyscall, name)
}
