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

package handlers

import (
	"testing"

	"github.com/sandboxrt/kerneld/vfs"
)

func newTestSearch() (*Search, *vfs.Filesystem) {
	fs := vfs.New(vfs.MemFs)
	return NewSearch(fs), fs
}

func TestSearchFilesFuzzyMatchesByName(t *testing.T) {
	h, fs := newTestSearch()
	fs.CreateDirectory("/proj")
	fs.WriteFile("/proj/main.go", []byte("package main"), 0o644)
	fs.WriteFile("/proj/readme.md", []byte("docs"), 0o644)

	result, err := h.Handle(1, call("search.search_files", map[string]any{
		"path": "/proj", "query": "main",
	}))
	if err != nil {
		t.Fatal(err)
	}
	hits := result.Data.([]fileHit)
	found := false
	for _, hit := range hits {
		if hit.Path == "/proj/main.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected main.go to be a fuzzy match for \"main\", got %v", hits)
	}
}

func TestSearchFilesRespectsLimit(t *testing.T) {
	h, fs := newTestSearch()
	fs.CreateDirectory("/d")
	for _, name := range []string{"alpha.txt", "alphabet.txt", "alphanumeric.txt"} {
		fs.WriteFile("/d/"+name, []byte("x"), 0o644)
	}

	result, err := h.Handle(1, call("search.search_files", map[string]any{
		"path": "/d", "query": "alpha", "limit": 1,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data.([]fileHit)) != 1 {
		t.Fatalf("expected the limit to cap results at 1, got %v", result.Data)
	}
}

func TestSearchContentFindsMatchingLines(t *testing.T) {
	h, fs := newTestSearch()
	fs.CreateDirectory("/src")
	fs.WriteFile("/src/a.txt", []byte("first line\nneedle here\nlast line"), 0o644)

	result, err := h.Handle(1, call("search.search_content", map[string]any{
		"path": "/src", "query": "needle",
	}))
	if err != nil {
		t.Fatal(err)
	}
	hits := result.Data.([]contentHit)
	if len(hits) != 1 || hits[0].Line != 2 {
		t.Fatalf("expected one hit on line 2, got %v", hits)
	}
}

func TestSearchContentCaseInsensitiveByDefault(t *testing.T) {
	h, fs := newTestSearch()
	fs.CreateDirectory("/src")
	fs.WriteFile("/src/a.txt", []byte("FOO bar"), 0o644)

	result, err := h.Handle(1, call("search.search_content", map[string]any{
		"path": "/src", "query": "foo",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data.([]contentHit)) != 1 {
		t.Fatalf("expected a case-insensitive match, got %v", result.Data)
	}
}

func TestNormalizeFuzzyScoreClampsToUnitInterval(t *testing.T) {
	if s := normalizeFuzzyScore(0, 0); s != 0 {
		t.Fatalf("expected a zero-length pattern to score 0, got %v", s)
	}
	if s := normalizeFuzzyScore(1000, 3); s != 1 {
		t.Fatalf("expected an overlarge score to clamp at 1, got %v", s)
	}
	if s := normalizeFuzzyScore(-5, 3); s != 0 {
		t.Fatalf("expected a negative score to clamp at 0, got %v", s)
	}
}
