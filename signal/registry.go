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

package signal

import (
	"sync"

	"github.com/sandboxrt/kerneld/domain"
)

// Callback is a registered handler, invoked with the pid and signal that
// triggered it.
type Callback func(pid domain.Pid, sig Signal)

// Registry maps HandlerID to a registered Callback, the shared table that
// a process's Handler(id) disposition resolves against.
type Registry struct {
	mu       sync.RWMutex
	handlers map[HandlerID]Callback
	nextID   HandlerID
}

// NewRegistry builds an empty handler Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[HandlerID]Callback)}
}

// Register installs cb and returns the HandlerID to use in a
// HandlerAction.
func (r *Registry) Register(cb Callback) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handlers[id] = cb
	return id
}

// Unregister removes a previously registered callback.
func (r *Registry) Unregister(id HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
}

// invoke calls the callback for id, if still registered.
func (r *Registry) invoke(id HandlerID, pid domain.Pid, sig Signal) bool {
	r.mu.RLock()
	cb, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	cb(pid, sig)
	return true
}
