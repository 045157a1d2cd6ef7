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

// Package metrics renders the kernel's per-syscall counters and duration
// summaries as Prometheus text-format output, per spec.md section 6. No
// example repo in the retrieval pack imports client_golang, and the spec's
// own Non-goals exclude a full metrics/trace exporter stack, so this
// package stays a small hand-rolled formatter rather than wiring a
// third-party instrumentation library for a concern nothing else needs.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/syscalls"
)

// quantileWindow bounds how many recent durations feed a syscall's
// quantile estimate; old samples are evicted FIFO once it fills.
const quantileWindow = 512

var quantiles = []float64{0.5, 0.95, 0.99}

type syscallStats struct {
	successes uint64
	errors    uint64
	denials   uint64
	sum       time.Duration
	count     uint64
	samples   []time.Duration // ring buffer of the last quantileWindow durations
	next      int
}

// Exporter implements syscalls.MetricsSink, accumulating per-syscall-name
// counters and a bounded duration sample set rendered as Prometheus
// counter/gauge/summary blocks on Render.
type Exporter struct {
	start time.Time

	mu    sync.Mutex
	byName map[string]*syscallStats
}

// NewExporter builds an Exporter; uptime is measured from construction.
func NewExporter() *Exporter {
	return &Exporter{start: time.Now(), byName: make(map[string]*syscallStats)}
}

var _ syscalls.MetricsSink = (*Exporter)(nil)

// Observe records one completed syscall's outcome, implementing
// syscalls.MetricsSink.
func (e *Exporter) Observe(name string, kind syscalls.ResultKind, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.byName[name]
	if !ok {
		st = &syscallStats{samples: make([]time.Duration, 0, quantileWindow)}
		e.byName[name] = st
	}

	switch kind {
	case syscalls.Success:
		st.successes++
	case syscalls.PermissionDenied:
		st.denials++
	default:
		st.errors++
	}

	st.sum += duration
	st.count++
	if len(st.samples) < quantileWindow {
		st.samples = append(st.samples, duration)
	} else {
		st.samples[st.next] = duration
		st.next = (st.next + 1) % quantileWindow
	}
}

// metricName turns a dotted syscall name ("fs.read_file") into the
// underscore-joined form Prometheus metric names use.
func metricName(syscallName string) string {
	return strings.ReplaceAll(syscallName, ".", "_")
}

// Render produces the full Prometheus text-format export, per spec.md
// section 6: a counter and a summary (p50/p95/p99 + sum + count) per
// syscall name, plus the mandatory uptime gauge.
func (e *Exporter) Render() string {
	e.mu.Lock()
	names := make([]string, 0, len(e.byName))
	stats := make(map[string]syscallStats, len(e.byName))
	for name, st := range e.byName {
		names = append(names, name)
		stats[name] = *st
	}
	uptime := time.Since(e.start).Seconds()
	e.mu.Unlock()

	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		st := stats[name]
		metric := metricName(name)

		fmt.Fprintf(&b, "# TYPE kernel_%s_total counter\n", metric)
		fmt.Fprintf(&b, "kernel_%s_total{result=\"success\"} %d\n", metric, st.successes)
		fmt.Fprintf(&b, "kernel_%s_total{result=\"error\"} %d\n", metric, st.errors)
		fmt.Fprintf(&b, "kernel_%s_total{result=\"permission_denied\"} %d\n", metric, st.denials)

		fmt.Fprintf(&b, "# TYPE kernel_%s_duration_seconds summary\n", metric)
		fmt.Fprintf(&b, "kernel_%s_duration_seconds_sum %f\n", metric, st.sum.Seconds())
		fmt.Fprintf(&b, "kernel_%s_duration_seconds_count %d\n", metric, st.count)
		for _, q := range quantiles {
			fmt.Fprintf(&b, "kernel_%s_duration_seconds{quantile=\"%.2f\"} %f\n",
				metric, q, quantile(st.samples, q).Seconds())
		}
	}

	fmt.Fprintf(&b, "# TYPE kernel_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "kernel_uptime_seconds %f\n", uptime)

	return b.String()
}

// quantile returns the q-th quantile (0-1) of samples via nearest-rank on
// a sorted copy; an empty set reports zero.
func quantile(samples []time.Duration, q float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(q * float64(len(sorted)-1))
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
