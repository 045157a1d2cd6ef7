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
	"io"

	"github.com/spf13/afero"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/syscalls"
	"github.com/sandboxrt/kerneld/vfs"
)

// FS implements the "fs." family: the whole-file operations of spec.md
// section 6 plus the fd-table operations (open/close/dup/dup2/lseek/fcntl)
// it groups alongside them.
type FS struct {
	fs  *vfs.Filesystem
	fds *vfs.FDTable
}

// NewFS builds an FS handler over fs, tracking open descriptors in fds.
func NewFS(fs *vfs.Filesystem, fds *vfs.FDTable) *FS {
	return &FS{fs: fs, fds: fds}
}

func (*FS) Prefix() string             { return "fs." }
func (*FS) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *FS) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "fs.read_file":
		return h.readFile(call.Args)
	case "fs.write_file":
		return h.writeFile(call.Args)
	case "fs.create_file":
		return h.createFile(call.Args)
	case "fs.delete_file":
		return h.deleteFile(call.Args)
	case "fs.list_directory":
		return h.listDirectory(call.Args)
	case "fs.file_exists":
		return h.fileExists(call.Args)
	case "fs.file_stat":
		return h.fileStat(call.Args)
	case "fs.move_file":
		return h.moveFile(call.Args)
	case "fs.copy_file":
		return h.copyFile(call.Args)
	case "fs.create_directory":
		return h.createDirectory(call.Args)
	case "fs.remove_directory":
		return h.removeDirectory(call.Args)
	case "fs.get_working_directory":
		return h.getWorkingDirectory()
	case "fs.set_working_directory":
		return h.setWorkingDirectory(call.Args)
	case "fs.truncate_file":
		return h.truncateFile(call.Args)
	case "fs.open":
		return h.open(pid, call.Args)
	case "fs.close":
		return h.close(pid, call.Args)
	case "fs.dup":
		return h.dup(pid, call.Args)
	case "fs.dup2":
		return h.dup2(pid, call.Args)
	case "fs.lseek":
		return h.lseek(pid, call.Args)
	case "fs.fcntl":
		return h.fcntl(pid, call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *FS) readFile(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	data, err := h.fs.ReadFile(path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(data), nil
}

func (h *FS) writeFile(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	data, err := argBytes(args, "data")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.WriteFile(path, data, 0o644); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(len(data)), nil
}

func (h *FS) createFile(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.CreateFile(path, 0o644); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) deleteFile(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.DeleteFile(path); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) listDirectory(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	names, err := h.fs.ListDirectory(path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(names), nil
}

func (h *FS) fileExists(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	return syscalls.SuccessResult(h.fs.Exists(path)), nil
}

func (h *FS) fileStat(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	info, err := h.fs.Stat(path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"size":     info.Size(),
		"mode":     uint32(info.Mode()),
		"mod_time": info.ModTime(),
		"is_dir":   info.IsDir(),
	}), nil
}

func (h *FS) moveFile(args map[string]any) (syscalls.Result, error) {
	from, err := argString(args, "from")
	if err != nil {
		return syscalls.Result{}, err
	}
	to, err := argString(args, "to")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.Rename(from, to); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) copyFile(args map[string]any) (syscalls.Result, error) {
	from, err := argString(args, "from")
	if err != nil {
		return syscalls.Result{}, err
	}
	to, err := argString(args, "to")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.Copy(from, to); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) createDirectory(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.MkdirAll(path, 0o755); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) removeDirectory(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.RemoveDirectory(path); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

// cwd is process-global rather than per-pid: spec.md's fs family treats
// the working directory as a single simulated-kernel value, not a
// per-sandbox one (sandboxing the working directory itself is a path-rule
// concern, enforced by permission.Engine on every call that resolves a
// relative path against it).
var cwd = "/"

func (h *FS) getWorkingDirectory() (syscalls.Result, error) {
	return syscalls.SuccessResult(cwd), nil
}

func (h *FS) setWorkingDirectory(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	info, err := h.fs.Stat(path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if !info.IsDir() {
		return syscalls.ErrorResult("not a directory: " + path), nil
	}
	cwd = path
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) truncateFile(args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	size, err := argInt(args, "size")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fs.Truncate(path, int64(size)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) open(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}

	var file afero.File
	if argBool(args, "write", false) {
		file, err = h.fs.Create(path)
	} else {
		file, err = h.fs.Open(path)
	}
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	fd := h.fds.Open(pid, path, file)
	return syscalls.SuccessResult(uint32(fd)), nil
}

func (h *FS) close(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fds.Close(pid, domain.Fd(fd)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) dup(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	newFd, err := h.fds.Dup(pid, domain.Fd(fd))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(uint32(newFd)), nil
}

func (h *FS) dup2(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	oldFd, err := argInt(args, "old_fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	newFd, err := argInt(args, "new_fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.fds.Dup2(pid, domain.Fd(oldFd), domain.Fd(newFd)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *FS) lseek(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	offset, err := argInt(args, "offset")
	if err != nil {
		return syscalls.Result{}, err
	}
	whence := optInt(args, "whence", io.SeekStart)

	file, _, err := h.fds.Get(pid, domain.Fd(fd))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	pos, err := file.Seek(int64(offset), whence)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(pos), nil
}

// fcntl supports the one operation meaningful in a simulated VFS with no
// underlying real fd: reporting the path a descriptor was opened against.
func (h *FS) fcntl(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	_, path, err := h.fds.Get(pid, domain.Fd(fd))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{"path": path}), nil
}
