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
	"io"
	"os"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/permission"
)

// DefaultChunkSize is stream_read's default chunk size, per spec.md
// section 4.7.
const DefaultChunkSize = 64 * 1024

// StreamRead checks pid's read permission for path once, then returns a
// channel yielding fresh chunk-sized byte buffers until EOF or an error
// (sent as a final Result with Kind == Error before the channel closes).
func (e *Executor) StreamRead(pid domain.Pid, path string, chunkSize int) (<-chan Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if decision, reason := e.perm.CheckAndAudit(pid, permission.Request{
		Action: permission.ReadFile, Resource: permission.ReadFileCap(path),
	}); decision == permission.Denied {
		return nil, errPermission(reason)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	out := make(chan Result)
	go func() {
		defer close(out)
		defer f.Close()
		for {
			buf := make([]byte, chunkSize)
			n, err := f.Read(buf)
			if n > 0 {
				out <- SuccessResult(buf[:n])
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				out <- ErrorResult(err.Error())
				return
			}
		}
	}()
	return out, nil
}

// StreamWrite checks pid's write permission for path once, then consumes
// chunks off in until it closes, returning total bytes written after a
// final flush.
func (e *Executor) StreamWrite(pid domain.Pid, path string, in <-chan []byte) (int64, error) {
	if decision, reason := e.perm.CheckAndAudit(pid, permission.Request{
		Action: permission.WriteFile, Resource: permission.WriteFileCap(path),
	}); decision == permission.Denied {
		return 0, errPermission(reason)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total int64
	for chunk := range in {
		n, err := f.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, f.Sync()
}

type permissionError struct{ reason string }

func (e *permissionError) Error() string { return "permission denied: " + e.reason }

func errPermission(reason string) error { return &permissionError{reason: reason} }
