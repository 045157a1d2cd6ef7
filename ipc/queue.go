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
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
)

// FIFOQueue is a VecDeque-shaped message queue: push_back / pop_front,
// single-notify on push, per spec.md section 4.3.
type FIFOQueue struct {
	id      domain.QueueId
	mu      sync.Mutex
	items   [][]byte
	closed  bool
	waiters conc.WaitQueue
	key     string
}

func newFIFOQueue(id domain.QueueId, waiters conc.WaitQueue) *FIFOQueue {
	return &FIFOQueue{id: id, waiters: waiters, key: fmt.Sprintf("queue:fifo:%d", id)}
}

// Push appends msg and wakes a single waiter (level-triggered Wake still
// only needs one consumer to notice; others requeue if they lose the race).
func (q *FIFOQueue) Push(msg []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.waiters.Wake(q.key)
	return nil
}

// Pop removes and returns the oldest message, non-blocking.
func (q *FIFOQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// PopWait blocks (timeout zero means forever) for a message; a timeout
// never consumes an item, per spec.md section 4.3.
func (q *FIFOQueue) PopWait(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if msg, ok := q.Pop(); ok {
			return msg, nil
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		if err := q.waiters.Wait(q.key, deadline); err != nil {
			return nil, ErrTimeout
		}
	}
}

// Close marks the queue closed; further Push calls fail.
func (q *FIFOQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.waiters.Wake(q.key)
}

// Len reports the number of queued messages.
func (q *FIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ID returns the queue's table-assigned identifier.
func (q *FIFOQueue) ID() domain.QueueId { return q.id }

// priorityItem is one entry of a PriorityQueue's backing heap.
type priorityItem struct {
	msg       []byte
	priority  int
	timestamp int64
}

type priorityHeap []priorityItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].timestamp < h[j].timestamp // older first on a tie
}
func (h priorityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) { *h = append(*h, x.(priorityItem)) }
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is a binary max-heap keyed by (priority, -timestamp), per
// spec.md section 4.3.
type PriorityQueue struct {
	id      domain.QueueId
	mu      sync.Mutex
	heap    priorityHeap
	closed  bool
	waiters conc.WaitQueue
	key     string
	clock   func() int64
}

func newPriorityQueue(id domain.QueueId, waiters conc.WaitQueue, clock func() int64) *PriorityQueue {
	return &PriorityQueue{id: id, waiters: waiters, key: fmt.Sprintf("queue:prio:%d", id), clock: clock}
}

// Push enqueues msg at priority, timestamped by the queue's injected clock.
func (q *PriorityQueue) Push(msg []byte, priority int) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	heap.Push(&q.heap, priorityItem{msg: msg, priority: priority, timestamp: q.clock()})
	q.mu.Unlock()
	q.waiters.Wake(q.key)
	return nil
}

// Pop removes and returns the highest-priority message, non-blocking.
func (q *PriorityQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(&q.heap).(priorityItem)
	return item.msg, true
}

// PopWait blocks (timeout zero means forever) for a message.
func (q *PriorityQueue) PopWait(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if msg, ok := q.Pop(); ok {
			return msg, nil
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		if err := q.waiters.Wait(q.key, deadline); err != nil {
			return nil, ErrTimeout
		}
	}
}

// Close marks the queue closed.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.waiters.Wake(q.key)
}

// Len reports the number of queued messages.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// ID returns the queue's table-assigned identifier.
func (q *PriorityQueue) ID() domain.QueueId { return q.id }

// DropPolicy selects what a full PubSub subscriber does with an incoming
// publish.
type DropPolicy int

const (
	// DropOldest evicts the subscriber's oldest buffered message to make
	// room for the new one.
	DropOldest DropPolicy = iota
	// DropNewest discards the incoming publish instead.
	DropNewest
)

// subscriber is one PubSub consumer's bounded mailbox.
type subscriber struct {
	mu       sync.Mutex
	messages [][]byte
	capacity int
	policy   DropPolicy
}

// PubSub fans a publish out to every non-full subscriber; full subscribers
// drop according to policy, per spec.md section 4.3.
type PubSub struct {
	id      domain.QueueId
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextSub int
	waiters conc.WaitQueue
}

func newPubSub(id domain.QueueId, waiters conc.WaitQueue) *PubSub {
	return &PubSub{id: id, subs: make(map[int]*subscriber), waiters: waiters}
}

// ID returns the topic's table-assigned identifier.
func (p *PubSub) ID() domain.QueueId { return p.id }

// Subscribe registers a new subscriber with a bounded mailbox, returning a
// handle used by Unsubscribe and Receive.
func (p *PubSub) Subscribe(capacity int, policy DropPolicy) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.subs[id] = &subscriber{capacity: capacity, policy: policy}
	return id
}

// Unsubscribe removes a subscriber.
func (p *PubSub) Unsubscribe(sub int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, sub)
}

func (p *PubSub) subscriberKey(sub int) string {
	return fmt.Sprintf("pubsub:%d:%d", p.id, sub)
}

// Publish clones msg to every subscriber, applying each one's drop policy
// when its mailbox is full.
func (p *PubSub) Publish(msg []byte) {
	p.mu.Lock()
	targets := make([]int, 0, len(p.subs))
	for id := range p.subs {
		targets = append(targets, id)
	}
	p.mu.Unlock()

	for _, id := range targets {
		p.mu.Lock()
		s, ok := p.subs[id]
		p.mu.Unlock()
		if !ok {
			continue
		}
		cp := make([]byte, len(msg))
		copy(cp, msg)

		s.mu.Lock()
		if len(s.messages) >= s.capacity {
			switch s.policy {
			case DropOldest:
				s.messages = append(s.messages[1:], cp)
			case DropNewest:
				// incoming message is discarded; mailbox unchanged.
			}
		} else {
			s.messages = append(s.messages, cp)
		}
		s.mu.Unlock()
		p.waiters.Wake(p.subscriberKey(id))
	}
}

// Receive pops the oldest message for sub, non-blocking.
func (p *PubSub) Receive(sub int) ([]byte, bool) {
	p.mu.Lock()
	s, ok := p.subs[sub]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil, false
	}
	msg := s.messages[0]
	s.messages = s.messages[1:]
	return msg, true
}

// ReceiveWait blocks (timeout zero means forever) for a message addressed
// to sub.
func (p *PubSub) ReceiveWait(sub int, timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if msg, ok := p.Receive(sub); ok {
			return msg, nil
		}
		p.mu.Lock()
		_, exists := p.subs[sub]
		p.mu.Unlock()
		if !exists {
			return nil, ErrNotFound
		}
		if err := p.waiters.Wait(p.subscriberKey(sub), deadline); err != nil {
			return nil, ErrTimeout
		}
	}
}
