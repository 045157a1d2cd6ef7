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

// Package api is the kernel's external-interface adapter: it maps a plain
// WireRequest (standing in for the generated gRPC message the real server
// plumbing would carry, which is out of scope here) plus an authenticated
// pid into a syscalls.Syscall, and maps the resulting syscalls.Result back
// to a WireResponse. Enum-shaped fields travel the wire as plain integers,
// resolved through fixed positional tables the same way a generated
// protobuf enum would resolve against its .proto definition.
package api

import (
	"errors"

	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/syscalls"
)

// ErrInvalidRequest reports a WireRequest whose enum field carries an
// out-of-range value against this adapter's positional tables.
var ErrInvalidRequest = errors.New("api: invalid request")

// sandboxLevelNames is domain.SandboxLevel's wire encoding, indexed by the
// enum's own integer value.
var sandboxLevelNames = [...]string{"minimal", "standard", "privileged"}

// schedPolicyNames is domain.SchedPolicy's wire encoding.
var schedPolicyNames = [...]string{"round_robin", "priority", "fair"}

// capabilityKindNames is permission.Kind's wire encoding, in the same
// declaration order as the Kind constants in permission/types.go.
var capabilityKindNames = [...]string{
	"read_file", "write_file", "create_file", "delete_file", "list_directory",
	"spawn_process", "kill_process", "system_info", "time_access",
	"send_message", "receive_message", "network_access", "bind_port",
}

// WireRequest stands in for the generated gRPC request message: Syscall is
// the dotted family.operation wire name, Args its loosely-typed arguments,
// and the three enum fields are optional positional overrides consulted
// only by the operations that take them (process.spawn's SandboxLevel,
// scheduler.set_policy's SchedPolicy, a capability grant's Capability).
type WireRequest struct {
	Pid          uint32
	Syscall      string
	Args         map[string]any
	SandboxLevel *int32
	SchedPolicy  *int32
	Capability   *int32
}

// WireResponse is the Success|Error|PermissionDenied envelope of spec.md
// section 6, with Data left as the loosely-typed payload a generated
// message would otherwise marshal field-by-field.
type WireResponse struct {
	Kind    string
	Data    any
	Message string
	Reason  string
}

// Adapter translates between WireRequest/WireResponse and the internal
// syscalls types; it carries no state of its own.
type Adapter struct{}

// NewAdapter builds an Adapter.
func NewAdapter() *Adapter { return &Adapter{} }

// Translate maps req into a syscalls.Syscall, resolving any enum override
// fields into their string form and merging them into Args under the
// conventional key the corresponding handler reads (see
// syscalls/handlers/process.go's parseSandboxLevel, for instance).
func (*Adapter) Translate(req WireRequest) (syscalls.Syscall, error) {
	args := req.Args
	if args == nil {
		args = make(map[string]any)
	} else {
		cloned := make(map[string]any, len(args)+1)
		for k, v := range args {
			cloned[k] = v
		}
		args = cloned
	}

	if req.SandboxLevel != nil {
		name, err := indexName(sandboxLevelNames[:], *req.SandboxLevel)
		if err != nil {
			return syscalls.Syscall{}, err
		}
		args["sandbox_level"] = name
	}
	if req.SchedPolicy != nil {
		name, err := indexName(schedPolicyNames[:], *req.SchedPolicy)
		if err != nil {
			return syscalls.Syscall{}, err
		}
		args["policy"] = name
	}
	if req.Capability != nil {
		name, err := indexName(capabilityKindNames[:], *req.Capability)
		if err != nil {
			return syscalls.Syscall{}, err
		}
		args["capability"] = name
	}

	return syscalls.Syscall{
		Name: req.Syscall,
		Pid:  domain.Pid(req.Pid),
		Args: args,
	}, nil
}

func indexName(table []string, idx int32) (string, error) {
	if idx < 0 || int(idx) >= len(table) {
		return "", ErrInvalidRequest
	}
	return table[idx], nil
}

// Respond maps a syscalls.Result back to the wire envelope.
func (*Adapter) Respond(result syscalls.Result) WireResponse {
	switch result.Kind {
	case syscalls.Success:
		return WireResponse{Kind: "Success", Data: result.Data}
	case syscalls.PermissionDenied:
		return WireResponse{Kind: "PermissionDenied", Reason: result.Reason}
	default:
		return WireResponse{Kind: "Error", Message: result.Message}
	}
}

// GRPCStatus maps a WireResponse to the grpc status code a real server
// transport would return, per spec.md section 7's error-to-wire collapse:
// permission errors map to PermissionDenied, unsupported/unknown syscalls
// to Unimplemented, and every other error to Internal as the conservative
// default.
func GRPCStatus(resp WireResponse) error {
	switch resp.Kind {
	case "Success":
		return nil
	case "PermissionDenied":
		return grpcStatus.Errorf(grpcCodes.PermissionDenied, resp.Reason)
	default:
		if resp.Message == syscalls.ErrUnsupportedSyscall.Error() {
			return grpcStatus.Errorf(grpcCodes.Unimplemented, resp.Message)
		}
		return grpcStatus.Errorf(grpcCodes.Internal, resp.Message)
	}
}
