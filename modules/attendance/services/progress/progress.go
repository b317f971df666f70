// Package progress tracks an import run and publishes immutable snapshots.
package progress

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/attendance-sync/pkg/eventbus"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Snapshot is the state of a run at one point in time.
type Snapshot struct {
	Total   int    `json:"total"`
	Current int    `json:"current"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s Snapshot) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

// Sink receives snapshots. Delivery is fire-and-forget.
type Sink interface {
	Emit(Snapshot)
}

type FuncSink func(Snapshot)

func (f FuncSink) Emit(s Snapshot) {
	if f != nil {
		f(s)
	}
}

// ChannelSink forwards snapshots without blocking. When the buffer is full
// the snapshot is dropped, except terminal ones which wait for room.
type ChannelSink struct {
	ch chan Snapshot
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Snapshot, buffer)}
}

func (c *ChannelSink) C() <-chan Snapshot { return c.ch }

func (c *ChannelSink) Emit(s Snapshot) {
	if s.Terminal() {
		c.ch <- s
		return
	}
	select {
	case c.ch <- s:
	default:
	}
}

// Close must only be called once the emitting run has returned.
func (c *ChannelSink) Close() { close(c.ch) }

// BusSink fans snapshots out to every subscriber of bus.
type BusSink struct {
	bus *eventbus.Bus[Snapshot]
}

func NewBusSink(bus *eventbus.Bus[Snapshot]) *BusSink {
	return &BusSink{bus: bus}
}

func (b *BusSink) Emit(s Snapshot) { b.bus.Publish(s) }

// Tracker accumulates the state of a single run. Its methods are safe for
// concurrent use, but the orchestrator is its only writer.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	sink Sink
	log  *logrus.Entry
}

func NewTracker(sink Sink) *Tracker {
	return &Tracker{snap: Snapshot{Status: StatusPending}, sink: sink}
}

// WithLogger mirrors every update to log at debug level.
func (t *Tracker) WithLogger(log *logrus.Entry) *Tracker {
	t.log = log
	return t
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Tracker) Start(total int) {
	t.update(func(s *Snapshot) {
		s.Status = StatusProcessing
		s.Total = total
		s.Current = 0
		s.Message = ""
	})
}

// Advance counts one more employee as processed.
func (t *Tracker) Advance(message string) {
	t.update(func(s *Snapshot) {
		if s.Current < s.Total {
			s.Current++
		}
		s.Message = message
	})
}

func (t *Tracker) Complete(message string) {
	t.update(func(s *Snapshot) {
		s.Status = StatusCompleted
		s.Message = message
	})
}

func (t *Tracker) Fail(message string) {
	t.update(func(s *Snapshot) {
		s.Status = StatusError
		s.Message = message
	})
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	snap := t.snap
	t.mu.Unlock()

	if t.log != nil {
		t.log.WithFields(logrus.Fields{
			"status":  snap.Status,
			"current": snap.Current,
			"total":   snap.Total,
		}).Debug(snap.Message)
	}
	if t.sink != nil {
		t.sink.Emit(snap)
	}
}
