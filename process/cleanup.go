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

package process

import "github.com/sandboxrt/kerneld/domain"

// CleanupOwner reclaims whatever pid-scoped resources a subsystem holds for
// pid, reporting how many discrete resources and bytes it freed. Owners
// must never block and must tolerate being called for a pid that already
// holds nothing; a non-nil err is recorded but never stops the remaining
// owners from running.
type CleanupOwner func(pid domain.Pid) (resourcesFreed int, bytesFreed uint64, err error)

// cleanupRegistry runs every registered owner unconditionally during
// Terminate, per spec.md section 4.6 step 4, aggregating into CleanupStats.
// A single slow or misbehaving owner cannot prevent the others from
// running; an owner's error is collected into CleanupStats.Errors rather
// than returned, and a missing resource is simply zero reclaimed rather
// than a failure.
type cleanupRegistry struct {
	owners []namedOwner
}

type namedOwner struct {
	name  string
	owner CleanupOwner
}

func newCleanupRegistry() *cleanupRegistry {
	return &cleanupRegistry{}
}

func (r *cleanupRegistry) register(name string, owner CleanupOwner) {
	r.owners = append(r.owners, namedOwner{name: name, owner: owner})
}

func (r *cleanupRegistry) run(pid domain.Pid) CleanupStats {
	var stats CleanupStats
	for _, o := range r.owners {
		freed, bytes, err := o.owner(pid)
		stats.ResourcesFreed += freed
		stats.BytesFreed += bytes
		if err != nil {
			stats.Errors = append(stats.Errors, err)
		}
	}
	return stats
}
