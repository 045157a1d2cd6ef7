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
	"path/filepath"
)

// PathHandle is an already-canonicalized absolute path, computed once at
// request entry to close the TOCTOU window between checking access and
// using the path, per spec.md section 4.1.
type PathHandle struct {
	canonical string
}

// CanonicalizePath resolves raw to an absolute, cleaned path. A
// non-existent leaf is handled by canonicalizing its parent directory and
// re-appending the leaf literally, since EvalSymlinks would otherwise fail
// on a path that doesn't exist yet (e.g. a file about to be created).
func CanonicalizePath(raw string, evalSymlinks func(string) (string, error)) (PathHandle, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return PathHandle{}, fmt.Errorf("permission: cannot make %q absolute: %w", raw, err)
	}
	abs = filepath.Clean(abs)

	if resolved, err := evalSymlinks(abs); err == nil {
		return PathHandle{canonical: resolved}, nil
	}

	leaf := filepath.Base(abs)
	if leaf == "." || leaf == string(filepath.Separator) {
		return PathHandle{}, fmt.Errorf("permission: path %q has no file-name component", raw)
	}
	parentResolved, err := evalSymlinks(filepath.Dir(abs))
	if err != nil {
		// Parent doesn't exist either; fall back to the cleaned absolute
		// path as the best available canonicalization.
		return PathHandle{canonical: abs}, nil
	}
	return PathHandle{canonical: filepath.Join(parentResolved, leaf)}, nil
}

// String returns the canonicalized path.
func (h PathHandle) String() string { return h.canonical }

// AccessAllowed implements the path access law of spec.md section 8.5:
// blocked overrides allowed; an empty allowed list denies everything.
func AccessAllowed(path string, allowed, blocked []string) bool {
	for _, b := range blocked {
		if pathContains(b, path) {
			return false
		}
	}
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if pathContains(a, path) {
			return true
		}
	}
	return false
}
