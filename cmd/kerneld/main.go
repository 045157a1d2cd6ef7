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

package main

import (
	"fmt"
	"os"
	osignal "os/signal"
	"runtime"
	"syscall"
	"time"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/memory"
	"github.com/sandboxrt/kerneld/metrics"
	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/process"
	"github.com/sandboxrt/kerneld/scheduler"
	"github.com/sandboxrt/kerneld/signal"
	"github.com/sandboxrt/kerneld/syscalls"
	"github.com/sandboxrt/kerneld/syscalls/handlers"
	"github.com/sandboxrt/kerneld/vfs"
)

const (
	runDir  = "/run/kerneld"
	pidFile = runDir + "/kerneld.pid"
	usage   = `kerneld user-space microkernel runtime

kerneld multiplexes sandboxed processes onto a host OS behind a
syscall-style API: permission-checked filesystem, process, scheduling,
memory, signal, IPC and network operations, exposed for an external
transport to translate (see the api package) without kerneld itself
opening any socket.
`
)

// kernel holds every constructed C4-C10 subsystem and the executor wired
// on top of them, so exitHandler and the eventual transport layer can
// reach them without a package-level global.
type kernel struct {
	executor *syscalls.Executor
	metrics  *metrics.Exporter
}

func buildKernel(backend vfs.Kind) *kernel {
	limits := config.DefaultLimits()
	timeouts := config.DefaultTimeoutPolicy()
	rateLimit := config.DefaultRateLimit()

	perm := permission.NewEngine(1024, time.Minute, 1024)
	ns := permission.NewNamespaceSim()

	mem := memory.NewManager(limits)
	sched := scheduler.NewScheduler(domain.FairPolicy, 10*time.Millisecond)

	pipes := ipc.NewPipeTable(limits)
	queues := ipc.NewQueueTable()
	shm := ipc.NewShmTable()
	rings := ipc.NewRingTable(limits)

	sigRegistry := signal.NewRegistry()
	procs := process.NewManager(sched, perm, mem, pipes, rings, sigRegistry, limits)

	fs := vfs.New(backend)
	fds := vfs.NewFDTable()

	registry := syscalls.NewRegistry()
	registry.Register(handlers.NewFS(fs, fds))
	registry.Register(handlers.NewProcess(procs))
	registry.Register(handlers.NewScheduler(sched))
	registry.Register(handlers.NewMemory(mem))
	registry.Register(handlers.NewSignal(procs.Signals()))
	registry.Register(handlers.NewIPC(pipes, queues, shm))
	registry.Register(handlers.NewRing(rings))
	registry.Register(handlers.NewMmap(mem, fs))
	registry.Register(handlers.NewNetwork(ns))

	sys := handlers.NewSystem()
	registry.Register(sys)
	registry.Register(handlers.TimeAlias{System: sys})

	registry.Register(handlers.NewSearch(fs))
	registry.Register(handlers.NewWatch(fs))
	registry.Register(handlers.NewClipboard(queues))

	exporter := metrics.NewExporter()
	executor := syscalls.NewExecutor(registry, perm, handlers.DeriveRequest, timeouts, rateLimit, exporter)

	return &kernel{executor: executor, metrics: exporter}
}

// exitHandler waits for a termination signal, logs it, stops any running
// profiler and removes the pid file before exiting.
func exitHandler(signalChan chan os.Signal, prof interface{ Stop() }, lock *flock.Flock) {
	s := <-signalChan
	logrus.Warnf("kerneld caught signal: %s", s)
	logrus.Info("stopping (gracefully) ...")

	systemd.SdNotify(false, systemd.SdNotifyStopping)

	if s == syscall.SIGABRT || s == syscall.SIGQUIT || s == syscall.SIGSEGV {
		stacktrace := make([]byte, 32768)
		n := runtime.Stack(stacktrace, true)
		logrus.Warnf("\n\n%s\n", string(stacktrace[:n]))
	}

	if prof != nil {
		prof.Stop()
	}
	if lock != nil {
		lock.Unlock()
		os.Remove(pidFile)
	}

	logrus.Info("exiting ...")
	os.Exit(0)
}

func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {
	cpuOn := ctx.Bool("cpu-profiling")
	memOn := ctx.Bool("memory-profiling")
	if cpuOn && memOn {
		return nil, fmt.Errorf("unsupported parameter combination: cpu and memory profiling")
	}
	if cpuOn {
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	}
	if memOn {
		return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	}
	return nil, nil
}

func acquirePidFile() (*flock.Flock, error) {
	if err := os.MkdirAll(runDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", runDir, err)
	}
	lock := flock.New(pidFile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", pidFile, err)
	}
	if !locked {
		return nil, fmt.Errorf("kerneld already running (locked %s)", pidFile)
	}
	return lock, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "kerneld"
	app.Usage = usage

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "backend",
			Value: "mem",
			Usage: "vfs backend: \"mem\" (default, in-memory) or \"os\" (real filesystem)",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log level: debug, info, warning, error, fatal",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format: text or json",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		if path := ctx.GlobalString("log"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0666)
			if err != nil {
				return fmt.Errorf("opening log file %s: %w", path, err)
			}
			logrus.SetOutput(f)
		} else {
			logrus.SetOutput(os.Stderr)
		}

		if ctx.GlobalString("log-format") == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})
		}

		level, err := logrus.ParseLevel(ctx.GlobalString("log-level"))
		if err != nil {
			return fmt.Errorf("log-level %q not recognized: %w", ctx.GlobalString("log-level"), err)
		}
		logrus.SetLevel(level)
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		logrus.Info("initiating kerneld ...")

		lock, err := acquirePidFile()
		if err != nil {
			return err
		}

		backend := vfs.MemFs
		if ctx.GlobalString("backend") == "os" {
			backend = vfs.OsFs
		}
		logrus.Infof("vfs backend = %s", ctx.GlobalString("backend"))

		k := buildKernel(backend)
		_ = k.executor // wired for the eventual transport layer to dispatch through

		prof, err := runProfiler(ctx)
		if err != nil {
			logrus.Fatal(err)
		}

		exitChan := make(chan os.Signal, 1)
		osignal.Notify(exitChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGSEGV, syscall.SIGQUIT)
		go exitHandler(exitChan, prof, lock)

		systemd.SdNotify(false, systemd.SdNotifyReady)
		logrus.Info("ready ...")

		select {}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
