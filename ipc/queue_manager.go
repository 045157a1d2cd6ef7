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

package ipc

import (
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
)

// QueueTable mints and owns every FIFO, priority and pub-sub queue.
type QueueTable struct {
	ids     *ids.Allocator[domain.QueueId]
	waiters conc.WaitQueue

	mu      sync.Mutex
	fifos   map[domain.QueueId]*FIFOQueue
	prios   map[domain.QueueId]*PriorityQueue
	pubsubs map[domain.QueueId]*PubSub
}

// NewQueueTable builds an empty QueueTable.
func NewQueueTable() *QueueTable {
	return &QueueTable{
		ids:     ids.NewAllocator[domain.QueueId](),
		waiters: conc.NewWaitQueue(conc.DefaultSyncConfig()),
		fifos:   make(map[domain.QueueId]*FIFOQueue),
		prios:   make(map[domain.QueueId]*PriorityQueue),
		pubsubs: make(map[domain.QueueId]*PubSub),
	}
}

// CreateFIFO mints a new FIFOQueue.
func (t *QueueTable) CreateFIFO() *FIFOQueue {
	id := t.ids.Alloc().Value
	q := newFIFOQueue(id, t.waiters)
	t.mu.Lock()
	t.fifos[id] = q
	t.mu.Unlock()
	return q
}

// CreatePriority mints a new PriorityQueue, using time.Now().UnixNano as
// the tie-break clock.
func (t *QueueTable) CreatePriority() *PriorityQueue {
	id := t.ids.Alloc().Value
	q := newPriorityQueue(id, t.waiters, func() int64 { return time.Now().UnixNano() })
	t.mu.Lock()
	t.prios[id] = q
	t.mu.Unlock()
	return q
}

// CreatePubSub mints a new PubSub topic.
func (t *QueueTable) CreatePubSub() *PubSub {
	id := t.ids.Alloc().Value
	q := newPubSub(id, t.waiters)
	t.mu.Lock()
	t.pubsubs[id] = q
	t.mu.Unlock()
	return q
}

// FIFO looks up a previously created FIFO queue.
func (t *QueueTable) FIFO(id domain.QueueId) (*FIFOQueue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.fifos[id]
	return q, ok
}

// Priority looks up a previously created priority queue.
func (t *QueueTable) Priority(id domain.QueueId) (*PriorityQueue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.prios[id]
	return q, ok
}

// PubSubTopic looks up a previously created pub-sub topic.
func (t *QueueTable) PubSubTopic(id domain.QueueId) (*PubSub, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.pubsubs[id]
	return q, ok
}

// RemoveFIFO closes and drops a FIFO queue.
func (t *QueueTable) RemoveFIFO(id domain.QueueId) {
	t.mu.Lock()
	q, ok := t.fifos[id]
	delete(t.fifos, id)
	t.mu.Unlock()
	if ok {
		q.Close()
	}
}

// RemovePriority closes and drops a priority queue.
func (t *QueueTable) RemovePriority(id domain.QueueId) {
	t.mu.Lock()
	q, ok := t.prios[id]
	delete(t.prios, id)
	t.mu.Unlock()
	if ok {
		q.Close()
	}
}

// RemovePubSub drops a pub-sub topic.
func (t *QueueTable) RemovePubSub(id domain.QueueId) {
	t.mu.Lock()
	delete(t.pubsubs, id)
	t.mu.Unlock()
}
