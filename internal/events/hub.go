// Package events distributes job lifecycle notifications to the SSE endpoint
// and the watch TUI.
package events

import (
	"sync"
	"time"
)

// Event types published by the gateway.
const (
	TypeJobEnqueued = "job.enqueued"
	TypeJobStarted  = "job.started"
	TypeJobFinished = "job.finished"
	TypeJobFailed   = "job.failed"
)

// Event is one job lifecycle notification. ID and At are stamped by the hub
// at publish time. ErrorKind and Error are set only on job.failed.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	JobID     string    `json:"job_id"`
	Task      string    `json:"task"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Hub fans events out to subscribers and keeps a bounded replay buffer so
// late clients can catch up via SnapshotSince.
type Hub struct {
	mu       sync.Mutex
	lastID   int64
	buf      []Event
	capacity int
	subs     map[int]chan Event
	nextSub  int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[int]chan Event),
	}
}

// Publish stamps ev with the next id and the current time, buffers it, and
// fans it out. Slow subscribers are skipped rather than blocking the
// publisher. The stamped event is returned.
func (h *Hub) Publish(ev Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev.ID = h.lastID
	ev.At = time.Now().UTC()

	h.buf = append(h.buf, ev)
	if len(h.buf) > h.capacity {
		// Drop the oldest in place; the backing array never regrows.
		n := copy(h.buf, h.buf[len(h.buf)-h.capacity:])
		h.buf = h.buf[:n]
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// lastID 0 returns the whole buffer.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.buf))
	for _, ev := range h.buf {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}
