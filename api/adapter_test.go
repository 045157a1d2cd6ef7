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

package api

import (
	"testing"

	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/sandboxrt/kerneld/syscalls"
)

func TestTranslateResolvesSandboxLevelEnum(t *testing.T) {
	level := int32(1) // "standard"
	req := WireRequest{Pid: 7, Syscall: "process.spawn", SandboxLevel: &level}

	call, err := NewAdapter().Translate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Args["sandbox_level"] != "standard" {
		t.Fatalf("expected sandbox_level=standard, got %v", call.Args["sandbox_level"])
	}
	if call.Pid != 7 {
		t.Fatalf("expected pid 7, got %v", call.Pid)
	}
}

func TestTranslateRejectsOutOfRangeEnum(t *testing.T) {
	level := int32(99)
	req := WireRequest{Syscall: "process.spawn", SandboxLevel: &level}

	_, err := NewAdapter().Translate(req)
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestTranslateDoesNotMutateCallerArgs(t *testing.T) {
	level := int32(0)
	original := map[string]any{"command": "echo"}
	req := WireRequest{Syscall: "process.spawn", Args: original, SandboxLevel: &level}

	if _, err := NewAdapter().Translate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := original["sandbox_level"]; ok {
		t.Fatal("expected Translate to clone Args rather than mutate the caller's map")
	}
}

func TestRespondMapsResultKinds(t *testing.T) {
	a := NewAdapter()

	if resp := a.Respond(syscalls.SuccessResult("ok")); resp.Kind != "Success" || resp.Data != "ok" {
		t.Fatalf("unexpected success response: %+v", resp)
	}
	if resp := a.Respond(syscalls.DeniedResult("no")); resp.Kind != "PermissionDenied" || resp.Reason != "no" {
		t.Fatalf("unexpected denied response: %+v", resp)
	}
	if resp := a.Respond(syscalls.ErrorResult("boom")); resp.Kind != "Error" || resp.Message != "boom" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
}

func TestGRPCStatusMapsUnsupportedSyscallToUnimplemented(t *testing.T) {
	resp := WireResponse{Kind: "Error", Message: syscalls.ErrUnsupportedSyscall.Error()}
	err := GRPCStatus(resp)
	if grpcStatus.Code(err) != grpcCodes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", grpcStatus.Code(err))
	}
}

func TestGRPCStatusSuccessIsNil(t *testing.T) {
	if err := GRPCStatus(WireResponse{Kind: "Success"}); err != nil {
		t.Fatalf("expected nil error for success, got %v", err)
	}
}
