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

import "errors"

// The executor's closed error taxonomy, per spec.md section 4.7. Any other
// error a handler returns is not one of these well-known outcomes; the
// executor converts it into an Error result carrying its message.
var (
	// ErrUnsupportedSyscall is returned when no registered handler claims a
	// syscall's name -- an all-miss walk of the registry, which spec.md
	// section 4.7 calls a programming error rather than a user-facing one.
	ErrUnsupportedSyscall = errors.New("syscalls: unsupported syscall")
	// ErrTimeout is returned when a syscall's category timeout elapses
	// before its handler completes.
	ErrTimeout = errors.New("syscalls: timed out")
	// ErrNoSandbox names the case of a calling pid with no sandbox
	// registered. Dispatch does not return it: permission.Engine already
	// denies such a pid, and the executor reports that as a PermissionDenied
	// result carrying the engine's reason.
	ErrNoSandbox = errors.New("syscalls: no sandbox registered for pid")
	// ErrRateLimited is returned when a pid submits syscalls faster than its
	// config.RateLimit token bucket allows.
	ErrRateLimited = errors.New("syscalls: submission rate limit exceeded")
)
