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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sandboxrt/kerneld/domain"
)

// Severity is an audit record's log level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
)

// AuditRecord is one permission-check decision, per spec.md section 4.1.
type AuditRecord struct {
	ID        string
	Timestamp time.Time
	Pid       domain.Pid
	Action    Kind
	Resource  string
	Decision  Decision
	Reason    string
	Severity  Severity
}

// Auditor records permission decisions and keeps a bounded in-memory ring
// for recent-history queries (system.get_stats-style introspection).
type Auditor struct {
	mu      sync.Mutex
	records []AuditRecord
	cap     int
}

// NewAuditor builds an Auditor retaining at most capacity records.
func NewAuditor(capacity int) *Auditor {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Auditor{cap: capacity}
}

// Record appends a decision to the audit trail and logs it at the
// decision's severity, per spec.md section 4.1's "Denied at Warn, explicit
// Allow at Info" rule.
func (a *Auditor) Record(pid domain.Pid, action Kind, resource string, decision Decision, reason string) AuditRecord {
	severity := SeverityInfo
	if decision == Denied {
		severity = SeverityWarn
	}
	rec := AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Pid:       pid,
		Action:    action,
		Resource:  resource,
		Decision:  decision,
		Reason:    reason,
		Severity:  severity,
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	if len(a.records) > a.cap {
		a.records = a.records[len(a.records)-a.cap:]
	}
	a.mu.Unlock()

	fields := logrus.Fields{
		"audit_id": rec.ID,
		"pid":      uint32(pid),
		"action":   action.String(),
		"resource": resource,
		"decision": decision.String(),
	}
	if severity == SeverityWarn {
		logrus.WithFields(fields).Warn(reason)
	} else {
		logrus.WithFields(fields).Info(reason)
	}
	return rec
}

// Recent returns up to n of the most recently recorded audit entries.
func (a *Auditor) Recent(n int) []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 || n > len(a.records) {
		n = len(a.records)
	}
	out := make([]AuditRecord, n)
	copy(out, a.records[len(a.records)-n:])
	return out
}
