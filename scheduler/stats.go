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

import "github.com/sandboxrt/kerneld/domain"

// Stats is the scheduler's point-in-time-per-field snapshot, read via a
// Seqlock rather than a mutex since it is on the hottest read path in the
// kernel (every scheduling decision's observers poll it), per spec.md
// section 4.4.
type Stats struct {
	TotalScheduled  uint64
	ContextSwitches uint64
	Preemptions     uint64
	ActiveProcesses int
	Policy          domain.SchedPolicy
	QuantumMicros   int64
}
