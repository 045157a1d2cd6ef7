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

// Package vfs is the thin filesystem abstraction the fs syscall family
// reads and writes through: an afero.Fs underneath, so production traffic
// hits the real OS filesystem while tests and handler-level sandboxing run
// against an in-memory one without any code-path divergence.
package vfs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Kind selects the backing afero implementation.
type Kind int

const (
	OsFs Kind = iota
	MemFs
)

// Filesystem wraps an afero.Fs with the handful of operations the fs
// syscall family needs.
type Filesystem struct {
	fs afero.Fs
}

// New builds a Filesystem backed by kind.
func New(kind Kind) *Filesystem {
	if kind == MemFs {
		return &Filesystem{fs: afero.NewMemMapFs()}
	}
	return &Filesystem{fs: afero.NewOsFs()}
}

// NewWithFs wraps an already-constructed afero.Fs directly, for callers
// that want a layered fs (afero.NewReadOnlyFs, afero.NewBasePathFs, ...).
func NewWithFs(fs afero.Fs) *Filesystem { return &Filesystem{fs: fs} }

// ReadFile reads path's entire contents.
func (f *Filesystem) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.fs, path)
}

// WriteFile writes data to path, creating or truncating it.
func (f *Filesystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(f.fs, path, data, perm)
}

// CreateFile creates path if it does not already exist.
func (f *Filesystem) CreateFile(path string, perm os.FileMode) error {
	if _, err := f.fs.Stat(path); err == nil {
		return os.ErrExist
	}
	fh, err := f.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	return fh.Close()
}

// DeleteFile removes path.
func (f *Filesystem) DeleteFile(path string) error {
	return f.fs.Remove(path)
}

// ListDirectory returns the sorted names of path's entries.
func (f *Filesystem) ListDirectory(path string) ([]string, error) {
	entries, err := afero.ReadDir(f.fs, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

// Stat returns path's os.FileInfo.
func (f *Filesystem) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

// Open opens path for streaming reads.
func (f *Filesystem) Open(path string) (afero.File, error) {
	return f.fs.Open(path)
}

// Create opens (or truncates) path for streaming writes.
func (f *Filesystem) Create(path string) (afero.File, error) {
	return f.fs.Create(path)
}

// Underlying exposes the raw afero.Fs for callers (e.g. afero.NewBasePathFs
// layering) that need it directly.
func (f *Filesystem) Underlying() afero.Fs { return f.fs }

// Rename moves oldPath to newPath, implementing move_file.
func (f *Filesystem) Rename(oldPath, newPath string) error {
	return f.fs.Rename(oldPath, newPath)
}

// Copy duplicates src's contents to dst, implementing copy_file; afero has
// no native copy primitive so this reads the source fully, which is
// acceptable given the files this kernel simulates are never large.
func (f *Filesystem) Copy(src, dst string) error {
	data, err := afero.ReadFile(f.fs, src)
	if err != nil {
		return err
	}
	info, err := f.fs.Stat(src)
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, dst, data, info.Mode())
}

// MkdirAll creates path and any missing parents.
func (f *Filesystem) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

// RemoveDirectory removes the empty directory at path.
func (f *Filesystem) RemoveDirectory(path string) error {
	return f.fs.Remove(path)
}

// Truncate resizes path to size, per spec.md's truncate_file.
func (f *Filesystem) Truncate(path string, size int64) error {
	fh, err := f.fs.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer fh.Close()
	return fh.Truncate(size)
}

// Exists reports whether path names an existing entry.
func (f *Filesystem) Exists(path string) bool {
	_, err := f.fs.Stat(path)
	return err == nil
}

// Walk visits root and every entry beneath it, afero.Walk's ordering
// (lexical, depth-first); the search and watch syscall families both need
// a full-tree traversal and share this rather than re-implementing one.
func (f *Filesystem) Walk(root string, walkFn filepath.WalkFunc) error {
	return afero.Walk(f.fs, root, walkFn)
}
