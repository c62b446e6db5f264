// Package bus implements the engine's Progress Bus: a fan-out broadcast
// of task progress events to any number of subscribers, each with its own
// bounded buffer so a slow reader cannot stall publishers.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/model"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// Message is one progress update broadcast to subscribers.
type Message struct {
	TaskID      uuid.UUID      `json:"task_id"`
	TaskType    model.TaskType `json:"task_type"`
	Status      model.TaskStatus `json:"status"`
	Progress    float64        `json:"progress"`
	CurrentFile string         `json:"current_file,omitempty"`
	Message     string         `json:"message,omitempty"`
}

type subscriber struct {
	id     uint64
	taskID *uuid.UUID // nil means "all tasks"
	ch     chan Message
	mu     sync.Mutex
	dropped uint64
}

// send enqueues msg, dropping the oldest buffered message instead of the
// new one when the subscriber's channel is full.
func (s *subscriber) send(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			atomic.AddUint64(&s.dropped, 1)
		default:
			return
		}
	}
}

// Bus is a bounded, drop-oldest fan-out broadcaster.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	bufSize int
}

// New creates a Bus whose subscriber channels hold bufSize messages
// (DefaultBufferSize if bufSize <= 0).
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Bus{subs: make(map[uint64]*subscriber), bufSize: bufSize}
}

// Subscription is a live subscriber handle.
type Subscription struct {
	id uint64
	ch <-chan Message
	b  *Bus
}

// C returns the channel to read messages from.
func (s *Subscription) C() <-chan Message { return s.ch }

// Subscribe registers a new subscriber. If taskID is non-nil, only
// messages for that task are delivered; otherwise all messages are.
func (b *Bus) Subscribe(taskID *uuid.UUID) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, taskID: taskID, ch: make(chan Message, b.bufSize)}
	b.subs[id] = sub
	return &Subscription{id: id, ch: sub.ch, b: b}
}

// Unsubscribe removes s from the bus and closes its channel.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		close(sub.ch)
	}
}

// Publish broadcasts msg to every subscriber whose task filter matches.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.taskID != nil && *sub.taskID != msg.TaskID {
			continue
		}
		sub.send(msg)
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
