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

	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/syscalls"
)

func TestDeriveRequestReadFileScopesToPath(t *testing.T) {
	req, ok := DeriveRequest(syscalls.Syscall{Name: "fs.read_file", Args: map[string]any{"path": "/a.txt"}})
	if !ok {
		t.Fatal("expected fs.read_file to derive a request")
	}
	want := permission.Request{Action: permission.ReadFile, Resource: permission.ReadFileCap("/a.txt")}
	if req != want {
		t.Fatalf("expected %+v, got %+v", want, req)
	}
}

func TestDeriveRequestMoveFileScopesToDestination(t *testing.T) {
	req, ok := DeriveRequest(syscalls.Syscall{
		Name: "fs.move_file",
		Args: map[string]any{"from": "/src.txt", "to": "/dst.txt"},
	})
	if !ok {
		t.Fatal("expected fs.move_file to derive a request")
	}
	if req.Resource != permission.CreateFileCap("/dst.txt") {
		t.Fatalf("expected the request to scope to the destination, got %+v", req)
	}
}

func TestDeriveRequestNetworkBindScopesToPort(t *testing.T) {
	req, ok := DeriveRequest(syscalls.Syscall{Name: "network.bind", Args: map[string]any{"port": 8080}})
	if !ok {
		t.Fatal("expected network.bind to derive a request")
	}
	if req.Resource != permission.BindPortCap(8080) {
		t.Fatalf("expected a BindPort capability scoped to 8080, got %+v", req.Resource)
	}
}

func TestDeriveRequestMmapBypassesPermissionCheck(t *testing.T) {
	_, ok := DeriveRequest(syscalls.Syscall{Name: "mmap.mmap", Args: nil})
	if ok {
		t.Fatal("expected mmap operations to bypass the permission check")
	}
}

func TestDeriveRequestUnknownSyscallBypassesPermissionCheck(t *testing.T) {
	_, ok := DeriveRequest(syscalls.Syscall{Name: "scheduler.schedule_next", Args: nil})
	if ok {
		t.Fatal("expected an unmapped syscall to bypass the permission check")
	}
}
