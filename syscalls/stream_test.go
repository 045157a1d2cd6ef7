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
	"os"
	"path/filepath"
	"testing"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/permission"
)

func sandboxedExecutor(t *testing.T, pid domain.Pid, root string) *Executor {
	t.Helper()
	e, _ := newTestExecutor(nil, nil)
	sandbox := permission.NewSandbox(pid, domain.Standard)
	sandbox.Capabilities.Add(permission.ReadFileCap(root))
	sandbox.Capabilities.Add(permission.WriteFileCap(root))
	e.perm.RegisterSandbox(sandbox)
	return e
}

func TestStreamReadYieldsChunksThenCloses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := make([]byte, DefaultChunkSize+128)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	e := sandboxedExecutor(t, 1, dir)
	out, err := e.StreamRead(1, path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []byte
	for result := range out {
		if result.Kind == Error {
			t.Fatalf("unexpected stream error: %s", result.Message)
		}
		got = append(got, result.Data.([]byte)...)
	}
	if len(got) != len(content) {
		t.Fatalf("expected %d bytes, got %d", len(content), len(got))
	}
}

func TestStreamReadDeniedWithoutCapability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.bin")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	e, _ := newTestExecutor(nil, nil) // no sandbox registered for pid 1
	if _, err := e.StreamRead(1, path, 0); err == nil {
		t.Fatal("expected a permission error with no sandbox registered")
	}
}

func TestStreamWriteAccumulatesTotalAndFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	e := sandboxedExecutor(t, 1, dir)
	in := make(chan []byte, 3)
	in <- []byte("abc")
	in <- []byte("defgh")
	in <- []byte("ij")
	close(in)

	total, err := e.StreamWrite(1, path, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 10 {
		t.Fatalf("expected 10 bytes written, got %d", total)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdefghij" {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestStreamWriteDeniedWithoutCapability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked.bin")

	e, _ := newTestExecutor(nil, nil)
	in := make(chan []byte)
	close(in)

	if _, err := e.StreamWrite(1, path, in); err == nil {
		t.Fatal("expected a permission error with no sandbox registered")
	}
}
