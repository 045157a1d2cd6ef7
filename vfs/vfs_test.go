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

package vfs

import (
	"os"
	"testing"
)

func TestCreateFileRejectsExisting(t *testing.T) {
	fs := New(MemFs)
	if err := fs.CreateFile("/a.txt", 0644); err != nil {
		t.Fatalf("unexpected error creating: %v", err)
	}
	if err := fs.CreateFile("/a.txt", 0644); !os.IsExist(err) {
		t.Fatalf("expected os.ErrExist re-creating, got %v", err)
	}
}

func TestListDirectoryIsSorted(t *testing.T) {
	fs := New(MemFs)
	fs.MkdirAll("/dir", 0755)
	fs.CreateFile("/dir/z.txt", 0644)
	fs.CreateFile("/dir/a.txt", 0644)
	fs.CreateFile("/dir/m.txt", 0644)

	names, err := fs.ListDirectory("/dir")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "m.txt", "z.txt"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestCopyPreservesContent(t *testing.T) {
	fs := New(MemFs)
	if err := fs.WriteFile("/src.txt", []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := fs.Copy("/src.txt", "/dst.txt"); err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile("/dst.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected copied contents, got %q", data)
	}
}

func TestRenameMovesFile(t *testing.T) {
	fs := New(MemFs)
	fs.WriteFile("/old.txt", []byte("x"), 0644)
	if err := fs.Rename("/old.txt", "/new.txt"); err != nil {
		t.Fatal(err)
	}
	if fs.Exists("/old.txt") {
		t.Fatal("expected the old path to be gone after rename")
	}
	if !fs.Exists("/new.txt") {
		t.Fatal("expected the new path to exist after rename")
	}
}

func TestTruncateResizesFile(t *testing.T) {
	fs := New(MemFs)
	fs.WriteFile("/f.txt", []byte("0123456789"), 0644)
	if err := fs.Truncate("/f.txt", 4); err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile("/f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0123" {
		t.Fatalf("expected truncated contents \"0123\", got %q", data)
	}
}

func TestWalkVisitsEveryEntry(t *testing.T) {
	fs := New(MemFs)
	fs.MkdirAll("/root/sub", 0755)
	fs.WriteFile("/root/a.txt", []byte("a"), 0644)
	fs.WriteFile("/root/sub/b.txt", []byte("b"), 0644)

	var visited []string
	err := fs.Walk("/root", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			visited = append(visited, path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(visited) != 2 {
		t.Fatalf("expected 2 files visited, got %v", visited)
	}
}
