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
	"fmt"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
)

// Engine is the kernel's single permission-check entry point: sandbox
// registry, decision cache and audit trail, evaluated per spec.md section
// 4.1's four-step algorithm.
type Engine struct {
	mu        sync.RWMutex
	sandboxes map[domain.Pid]*Sandbox
	policies  []Policy
	cache     *Cache
	auditor   *Auditor
}

// NewEngine builds an Engine with the default policy chain, a decision
// cache bounded to cacheSize entries with the given ttl, and an audit trail
// bounded to auditCapacity records.
func NewEngine(cacheSize int, ttl time.Duration, auditCapacity int) *Engine {
	return &Engine{
		sandboxes: make(map[domain.Pid]*Sandbox),
		policies:  DefaultPolicies(),
		cache:     NewCache(cacheSize, ttl),
		auditor:   NewAuditor(auditCapacity),
	}
}

// RegisterSandbox installs (or replaces) the sandbox for pid and
// invalidates any cached decisions made under a previous policy for it.
func (e *Engine) RegisterSandbox(sandbox *Sandbox) {
	e.mu.Lock()
	e.sandboxes[sandbox.Pid] = sandbox
	e.mu.Unlock()
	e.cache.Invalidate(sandbox.Pid)
}

// RemoveSandbox drops pid's sandbox entirely, e.g. on process exit.
func (e *Engine) RemoveSandbox(pid domain.Pid) {
	e.mu.Lock()
	delete(e.sandboxes, pid)
	e.mu.Unlock()
	e.cache.Invalidate(pid)
}

// Sandbox returns pid's sandbox, if any.
func (e *Engine) Sandbox(pid domain.Pid) (*Sandbox, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sandboxes[pid]
	return s, ok
}

// Check runs the four-step evaluation of spec.md section 4.1 without
// touching the audit trail; CheckAndAudit is the entry point callers
// outside this package should use.
func (e *Engine) Check(pid domain.Pid, req Request) (Decision, string) {
	sandbox, ok := e.Sandbox(pid)
	if !ok {
		return Denied, "no sandbox registered for process"
	}

	if decision, reason, hit := e.cache.Get(pid, req.Action, resourceKey(req.Resource)); hit {
		return decision, reason
	}

	decision, reason := e.evaluate(sandbox, req)
	e.cache.Set(pid, req.Action, resourceKey(req.Resource), decision, reason)
	return decision, reason
}

// CheckAndAudit runs Check and emits exactly one audit record for the
// call, per spec.md section 4.1's invariant, regardless of whether the
// decision came from cache or from a fresh policy evaluation.
func (e *Engine) CheckAndAudit(pid domain.Pid, req Request) (Decision, string) {
	decision, reason := e.Check(pid, req)
	e.auditor.Record(pid, req.Action, resourceKey(req.Resource), decision, reason)
	return decision, reason
}

// evaluate runs the policy chain in registration order: first Deny wins;
// otherwise any Allow wins; otherwise default deny.
func (e *Engine) evaluate(sandbox *Sandbox, req Request) (Decision, string) {
	allowed := false
	allowReason := ""
	for _, p := range e.policies {
		verdict, reason := p.Evaluate(sandbox, req)
		switch verdict {
		case verdictDeny:
			return Denied, fmt.Sprintf("%s: %s", p.Name(), reason)
		case verdictAllow:
			if !allowed {
				allowed, allowReason = true, fmt.Sprintf("%s: %s", p.Name(), reason)
			}
		}
	}
	if allowed {
		return Allowed, allowReason
	}
	return Denied, "default deny: no policy granted the request"
}

// Recent returns up to n of the most recently recorded audit entries.
func (e *Engine) Recent(n int) []AuditRecord { return e.auditor.Recent(n) }

// resourceKey derives the cache/audit resource identity from a capability,
// since the same Kind can carry different scopes across requests.
func resourceKey(c Capability) string {
	if !c.Scope.Present {
		return c.Kind.String()
	}
	switch c.Kind {
	case ReadFile, WriteFile, CreateFile, DeleteFile, ListDirectory:
		return c.Scope.Path
	case BindPort:
		return fmt.Sprintf("port:%d", c.Scope.Port)
	case NetworkAccess:
		return fmt.Sprintf("net:%s:%s:%d-%d", c.Scope.Host, c.Scope.CIDR, c.Scope.PortMin, c.Scope.PortMax)
	default:
		return c.Kind.String()
	}
}
