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

package process

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sandboxrt/kerneld/domain"
)

// reaper watches the OS children backing spawned virtual processes and
// reclaims them the moment they exit on their own, without waiting for an
// explicit Terminate call. A goroutine blocks on a signal channel and, on
// each wakeup, WNOHANG-polls every tracked child exactly once.
type reaper struct {
	mu      sync.Mutex
	tracked map[int]domain.Pid // osPid -> virtual pid
	signal  chan bool
	onExit  func(pid domain.Pid)
}

// newReaper starts the reaping goroutine. onExit is invoked (off the
// reaping goroutine's lock) for every OS child found to have exited; the
// manager uses it to drive the pid through the same Terminate cleanup path
// as an explicit request.
func newReaper(onExit func(pid domain.Pid)) *reaper {
	r := &reaper{
		tracked: make(map[int]domain.Pid),
		signal:  make(chan bool, 1),
		onExit:  onExit,
	}

	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	go func() {
		for range sigchld {
			r.requestReap()
		}
	}()

	go r.run()
	return r
}

// track registers osPid as a child to watch for pid.
func (r *reaper) track(pid domain.Pid, osPid int) {
	r.mu.Lock()
	r.tracked[osPid] = pid
	r.mu.Unlock()
}

// requestReap wakes the reaping goroutine. Non-blocking: if a reap pass is
// already pending, this is a no-op.
func (r *reaper) requestReap() {
	select {
	case r.signal <- true:
	default:
	}
}

func (r *reaper) run() {
	var wstatus syscall.WaitStatus

	for range r.signal {
		r.mu.Lock()
		for osPid, pid := range r.tracked {
			wpid, err := syscall.Wait4(osPid, &wstatus, syscall.WNOHANG, nil)
			if err != nil || wpid == 0 {
				continue
			}
			delete(r.tracked, osPid)
			logrus.WithFields(logrus.Fields{"pid": pid, "os_pid": osPid}).Info("process: reaped exited child")
			go r.onExit(pid)
		}
		r.mu.Unlock()
	}
}
