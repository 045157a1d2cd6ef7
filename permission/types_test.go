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

import "testing"

func TestGrantsWildcardGrantsAnyScope(t *testing.T) {
	wildcard := Unscoped(ReadFile)
	if !wildcard.Grants(ReadFileCap("/etc/passwd")) {
		t.Fatal("unscoped capability should grant any scoped request of the same kind")
	}
}

func TestGrantsPathContainment(t *testing.T) {
	root := ReadFileCap("/tmp")
	if !root.Grants(ReadFileCap("/tmp/x")) {
		t.Fatal("expected /tmp to grant /tmp/x")
	}
	if !root.Grants(ReadFileCap("/tmp")) {
		t.Fatal("expected /tmp to grant itself")
	}
	if root.Grants(ReadFileCap("/etc/passwd")) {
		t.Fatal("expected /tmp to not grant /etc/passwd")
	}
	if root.Grants(ReadFileCap("/tmpfoo")) {
		t.Fatal("expected /tmp to not grant /tmpfoo (prefix collision without separator)")
	}
}

func TestGrantsDifferentKindNeverGrants(t *testing.T) {
	if ReadFileCap("/tmp").Grants(WriteFileCap("/tmp")) {
		t.Fatal("ReadFile capability must never grant WriteFile")
	}
}

func TestGrantsScopedCannotGrantWildcardRequest(t *testing.T) {
	scoped := ReadFileCap("/tmp")
	wildcardRequest := Unscoped(ReadFile)
	if scoped.Grants(wildcardRequest) {
		t.Fatal("a scoped capability must not satisfy an unscoped request")
	}
}

func TestGrantsBindPortExactMatch(t *testing.T) {
	cap8080 := BindPortCap(8080)
	if !cap8080.Grants(BindPortCap(8080)) {
		t.Fatal("expected exact port match to grant")
	}
	if cap8080.Grants(BindPortCap(9090)) {
		t.Fatal("expected different port to not grant")
	}
}

func TestAccessAllowedBlockedOverridesAllowed(t *testing.T) {
	allowed := []string{"/tmp"}
	blocked := []string{"/tmp/secret"}
	if !AccessAllowed("/tmp/x", allowed, blocked) {
		t.Fatal("expected /tmp/x to be allowed")
	}
	if AccessAllowed("/tmp/secret/key", allowed, blocked) {
		t.Fatal("expected blocked path to override allowed root")
	}
}

func TestAccessAllowedEmptyAllowedDeniesAll(t *testing.T) {
	if AccessAllowed("/tmp/x", nil, nil) {
		t.Fatal("expected empty allowed list to deny everything")
	}
}

func TestSetHasUsesGrantsLaw(t *testing.T) {
	s := NewSet(ReadFileCap("/tmp"))
	if !s.Has(ReadFileCap("/tmp/x")) {
		t.Fatal("expected set to grant a descendant of a held capability")
	}
	if s.Has(ReadFileCap("/etc")) {
		t.Fatal("expected set to not grant an unrelated path")
	}
}
