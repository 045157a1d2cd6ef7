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
	"net"
	"sync"

	"github.com/sandboxrt/kerneld/domain"
)

// NamespaceSim is a pure bookkeeping simulation of a per-sandbox network
// namespace: it tracks simulated sockets and bound ports so the network
// syscall family and NetworkAccess/BindPort capability checks have
// something concrete to evaluate against, without touching any real
// socket, netns or eBPF facility.
type NamespaceSim struct {
	mu          sync.Mutex
	boundPorts  map[domain.Pid]map[int]bool
	sockets     map[domain.SockFd]*simSocket
	nextSockFd  domain.SockFd
}

type simSocket struct {
	owner       domain.Pid
	localPort   int
	remote      net.IP
	remotePort  int
	connected   bool
}

// NewNamespaceSim builds an empty NamespaceSim.
func NewNamespaceSim() *NamespaceSim {
	return &NamespaceSim{
		boundPorts: make(map[domain.Pid]map[int]bool),
		sockets:    make(map[domain.SockFd]*simSocket),
	}
}

// Socket allocates a new simulated socket for pid.
func (n *NamespaceSim) Socket(pid domain.Pid) domain.SockFd {
	n.mu.Lock()
	defer n.mu.Unlock()
	fd := n.nextSockFd
	n.nextSockFd++
	n.sockets[fd] = &simSocket{owner: pid}
	return fd
}

// Bind reserves port for the socket's owner, failing if any pid has
// already bound it (ports are host-global in this simulation, matching
// real kernel semantics for a non-SO_REUSEADDR bind).
func (n *NamespaceSim) Bind(fd domain.SockFd, port int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	sock, ok := n.sockets[fd]
	if !ok {
		return fmt.Errorf("permission: unknown socket %d", fd)
	}
	for _, ports := range n.boundPorts {
		if ports[port] {
			return fmt.Errorf("permission: port %d already bound", port)
		}
	}
	if n.boundPorts[sock.owner] == nil {
		n.boundPorts[sock.owner] = make(map[int]bool)
	}
	n.boundPorts[sock.owner][port] = true
	sock.localPort = port
	return nil
}

// Connect marks fd as connected to remote:port, the state NetworkAccess
// checks consult for outbound-connection requests.
func (n *NamespaceSim) Connect(fd domain.SockFd, remote net.IP, port int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	sock, ok := n.sockets[fd]
	if !ok {
		return fmt.Errorf("permission: unknown socket %d", fd)
	}
	sock.remote, sock.remotePort, sock.connected = remote, port, true
	return nil
}

// Close releases fd and any port it had bound.
func (n *NamespaceSim) Close(fd domain.SockFd) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sock, ok := n.sockets[fd]
	if !ok {
		return
	}
	if sock.localPort != 0 {
		delete(n.boundPorts[sock.owner], sock.localPort)
	}
	delete(n.sockets, fd)
}

// Peer reports the socket's remote endpoint, if connected.
func (n *NamespaceSim) Peer(fd domain.SockFd) (net.IP, int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sock, ok := n.sockets[fd]
	if !ok || !sock.connected {
		return nil, 0, false
	}
	return sock.remote, sock.remotePort, true
}

// IsBound reports whether pid currently holds port.
func (n *NamespaceSim) IsBound(pid domain.Pid, port int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.boundPorts[pid][port]
}
