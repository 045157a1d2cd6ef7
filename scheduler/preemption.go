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

package scheduler

import (
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
)

// PreemptionController tracks each running pid's dispatch deadline
// (last_scheduled + quantum) and reports which pids have crossed it, per
// spec.md section 4.4.
type PreemptionController struct {
	mu        sync.Mutex
	deadlines map[domain.Pid]time.Time
}

// NewPreemptionController builds an empty PreemptionController.
func NewPreemptionController() *PreemptionController {
	return &PreemptionController{deadlines: make(map[domain.Pid]time.Time)}
}

// Track records pid's deadline, replacing any previous one.
func (c *PreemptionController) Track(pid domain.Pid, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines[pid] = deadline
}

// Remove drops pid's deadline; idempotent, per spec.md's "remove(pid) is
// idempotent" requirement that also applies to this controller.
func (c *PreemptionController) Remove(pid domain.Pid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deadlines, pid)
}

// Expired returns every tracked pid whose deadline is at or before now,
// signaling the executor should yield them.
func (c *PreemptionController) Expired(now time.Time) []domain.Pid {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []domain.Pid
	for pid, deadline := range c.deadlines {
		if !now.Before(deadline) {
			expired = append(expired, pid)
		}
	}
	return expired
}
