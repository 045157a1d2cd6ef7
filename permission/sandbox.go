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

package permission

import (
	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
)

// Sandbox is one process's capability, path and resource policy, per
// spec.md section 3's Sandbox config.
type Sandbox struct {
	Pid            domain.Pid
	Level          domain.SandboxLevel
	Capabilities   Set
	AllowedPaths   []string
	BlockedPaths   []string
	ResourceLimits config.ResourceLimit
	NetworkRules   []NetworkRule
}

// NewSandbox builds a Sandbox at the given level, seeded with that level's
// default resource limits.
func NewSandbox(pid domain.Pid, level domain.SandboxLevel) *Sandbox {
	return &Sandbox{
		Pid:            pid,
		Level:          level,
		Capabilities:   NewSet(),
		ResourceLimits: config.ResourceLimitsByLevel()[level],
	}
}
