package events

import (
	"sync/atomic"
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
)

// Kind is the type of state change published by the reconciliation engine.
type Kind string

const (
	RecordCreated   Kind = "record_created"
	RecordEdited    Kind = "record_edited"
	RecordRemoved   Kind = "record_removed"
	RecordExpired   Kind = "record_expired"
	CreateConflict  Kind = "create_conflict"
	WorldChanged    Kind = "world_changed"
	Notification    Kind = "notification"
	LogMessage      Kind = "log_message"
	UpdateAvailable Kind = "update_available"
)

// Event carries what a renderer or notifier needs. Record is set for record_* kinds.
type Event struct {
	Kind    Kind
	Record  *model.EventRecord
	World   string
	Message string
	At      time.Time
}

// Bus is a lightweight in-process pub-sub backed by a buffered channel.
type Bus struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish attempts to enqueue the event without blocking.
// Returns true if published, false if the buffer is full.
func (b *Bus) Publish(evt Event) bool {
	if b == nil {
		return false
	}
	select {
	case b.ch <- evt:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Subscribe returns a read-only channel for consumers.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}

// Dropped counts events lost to a full buffer.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
