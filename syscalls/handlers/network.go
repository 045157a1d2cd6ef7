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
	"net"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Network implements the "network." family over a permission.NamespaceSim.
// accept/setsockopt/getsockopt have no meaningful effect in a simulation
// with no real socket behind it and are accepted as no-ops so client code
// written against the full syscall surface does not need family-specific
// branches.
type Network struct {
	ns *permission.NamespaceSim
}

// NewNetwork builds a Network handler over ns.
func NewNetwork(ns *permission.NamespaceSim) *Network { return &Network{ns: ns} }

func (*Network) Prefix() string               { return "network." }
func (*Network) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Network) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "network.socket":
		fd := h.ns.Socket(pid)
		return syscalls.SuccessResult(uint32(fd)), nil
	case "network.bind":
		return h.bind(call.Args)
	case "network.listen", "network.accept", "network.setsockopt", "network.getsockopt":
		return syscalls.SuccessResult(nil), nil
	case "network.connect":
		return h.connect(call.Args)
	case "network.send", "network.sendto":
		return h.send(call.Args)
	case "network.recv", "network.recvfrom":
		return h.recv(call.Args)
	case "network.close":
		return h.close(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Network) bind(args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	port, err := argInt(args, "port")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.ns.Bind(domain.SockFd(fd), port); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Network) connect(args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	host, err := argString(args, "host")
	if err != nil {
		return syscalls.Result{}, err
	}
	port, err := argInt(args, "port")
	if err != nil {
		return syscalls.Result{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return syscalls.ErrorResult("network: invalid host " + host), nil
	}
	if err := h.ns.Connect(domain.SockFd(fd), ip, port); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

// send/recv carry no real transport in this simulation; they validate the
// socket is connected (a would-be-denied-earlier NetworkAccess check has
// already run by the time the executor reaches the handler) and echo back
// a byte count, which is the only observable an entirely simulated
// transport can honestly report.
func (h *Network) send(args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	data, err := argBytes(args, "data")
	if err != nil {
		return syscalls.Result{}, err
	}
	if _, _, ok := h.ns.Peer(domain.SockFd(fd)); !ok {
		return syscalls.ErrorResult("network: socket not connected"), nil
	}
	return syscalls.SuccessResult(len(data)), nil
}

func (h *Network) recv(args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	if _, _, ok := h.ns.Peer(domain.SockFd(fd)); !ok {
		return syscalls.ErrorResult("network: socket not connected"), nil
	}
	return syscalls.SuccessResult([]byte{}), nil
}

func (h *Network) close(args map[string]any) (syscalls.Result, error) {
	fd, err := argInt(args, "fd")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.ns.Close(domain.SockFd(fd))
	return syscalls.SuccessResult(nil), nil
}
