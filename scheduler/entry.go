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

// Package scheduler implements the kernel's three runtime-switchable
// scheduling policies, preemption deadline tracking and a seqlock-backed
// stats snapshot, per spec.md section 4.4.
package scheduler

import (
	"time"

	"github.com/sandboxrt/kerneld/domain"
)

// Entry is one runnable process's scheduling bookkeeping.
type Entry struct {
	Pid                domain.Pid
	Priority           domain.Priority
	VRuntime           uint64
	TimeSliceRemaining time.Duration
	LastScheduled      time.Time
}
