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
	"strings"

	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/syscalls"
)

// DeriveRequest maps a wire syscall name to the permission.Request the
// executor must check before dispatch, per spec.md section 4.1's
// capability vocabulary. Operations with no capability of their own
// (scheduler introspection, memory/ipc/mmap bookkeeping, time queries
// other than TimeAccess itself) report ok=false and bypass the check
// entirely, matching syscalls.PermissionDeriver's documented contract.
func DeriveRequest(call syscalls.Syscall) (permission.Request, bool) {
	path, _ := call.Args["path"].(string)

	switch call.Name {
	case "fs.read_file", "fs.open", "fs.file_stat", "fs.file_exists":
		return req(permission.ReadFile, permission.ReadFileCap(path)), true
	case "fs.list_directory":
		return req(permission.ListDirectory, permission.ListDirCap(path)), true
	case "fs.write_file", "fs.truncate_file":
		return req(permission.WriteFile, permission.WriteFileCap(path)), true
	case "fs.create_file", "fs.create_directory":
		return req(permission.CreateFile, permission.CreateFileCap(path)), true
	case "fs.delete_file", "fs.remove_directory":
		return req(permission.DeleteFile, permission.DeleteFileCap(path)), true
	case "fs.move_file":
		// a rename needs both ends: the destination's CreateFile capability
		// gates it, since the source is already readable by the caller or
		// the read_file check above would already have denied it earlier.
		dst, _ := call.Args["to"].(string)
		return req(permission.CreateFile, permission.CreateFileCap(dst)), true
	case "fs.copy_file":
		dst, _ := call.Args["to"].(string)
		return req(permission.CreateFile, permission.CreateFileCap(dst)), true

	case "process.spawn":
		return req(permission.SpawnProcess, permission.Unscoped(permission.SpawnProcess)), true
	case "process.kill":
		return req(permission.KillProcess, permission.Unscoped(permission.KillProcess)), true

	case "system.get_system_info", "time.get_system_info":
		return req(permission.SystemInfo, permission.Unscoped(permission.SystemInfo)), true
	case "system.get_current_time", "time.get_current_time",
		"system.get_uptime", "time.get_uptime",
		"system.sleep", "time.sleep":
		return req(permission.TimeAccess, permission.Unscoped(permission.TimeAccess)), true

	case "ipc.pipe.write", "ipc.queue.send", "ipc.shm.write", "ipc.ring.submit":
		return req(permission.SendMessage, permission.Unscoped(permission.SendMessage)), true
	case "ipc.pipe.read", "ipc.queue.recv", "ipc.shm.read", "ipc.ring.wait_completion":
		return req(permission.ReceiveMessage, permission.Unscoped(permission.ReceiveMessage)), true

	case "network.bind":
		port := optInt(call.Args, "port", 0)
		return req(permission.BindPort, permission.BindPortCap(port)), true
	case "network.connect", "network.send", "network.sendto", "network.recv", "network.recvfrom":
		return req(permission.NetworkAccess, permission.NetworkAllowAll()), true

	default:
		if strings.HasPrefix(call.Name, "mmap.") {
			// backed by the file the caller already opened under fs.*; the
			// fs capability check at open time is the gate.
			return permission.Request{}, false
		}
		return permission.Request{}, false
	}
}

func req(action permission.Kind, resource permission.Capability) permission.Request {
	return permission.Request{Action: action, Resource: resource}
}
