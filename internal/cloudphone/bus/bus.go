// Package bus is the in-process publish/subscribe event bus (spec §4.2):
// four typed topics, best-effort synchronous fan-out where a stalled
// subscriber never blocks a workflow. New code — the teacher has no
// pub/sub of its own — shaped by what tombee-conductor's SSE surface
// (internal/controller/api/events.go) needs from a subscription
// primitive, implemented in the teacher's plain-stdlib style (mutex +
// channels, no external broker).
package bus

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"cloudphone/internal/cloudphone/metrics"
	"cloudphone/pkg/cloudphone"
)

// Topic names the four event channels of spec §4.2.
type Topic string

const (
	TopicPhoneUpdate    Topic = "phone_update"
	TopicLog            Topic = "log"
	TopicWorkflowStatus Topic = "workflow_status"
	TopicResults        Topic = "results"
)

// WorkflowStatusEvent is the payload of the workflow_status topic.
type WorkflowStatusEvent struct {
	Status cloudphone.WorkflowStatus `json:"status"`
	Error  string                    `json:"error,omitempty"`
}

// Event is the envelope delivered to subscribers, carrying the topic so
// a single subscription channel can multiplex every topic (used by the
// SSE handler).
type Event struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload"`
}

const (
	subscriberChannelCap = 64
	maxSubscribers       = 128
)

var errTooManySubscribers = errors.New("bus: subscriber cap reached")

type subscriber struct {
	id uuid.UUID
	ch chan Event
}

// Bus fans out published events to every subscriber. Zero value is not
// usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[uuid.UUID]*subscriber)}
}

// Subscribe registers a new subscriber and returns its handle and event
// channel. The caller must drain the channel and eventually call
// Unsubscribe. Spec §4.2 requires a cap of "at least 100"; this bus
// allows 128.
func (b *Bus) Subscribe() (uuid.UUID, <-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subscribers) >= maxSubscribers {
		return uuid.UUID{}, nil, errTooManySubscribers
	}
	id := uuid.New()
	sub := &subscriber{id: id, ch: make(chan Event, subscriberChannelCap)}
	b.subscribers[id] = sub
	return id, sub.ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish fans an event out to every subscriber. Delivery is
// best-effort: a subscriber whose channel is full has the event dropped
// for it (counted in metrics) rather than blocking publication for
// every other subscriber (spec §4.2 "a subscriber failure does not
// block others").
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev := Event{Topic: topic, Payload: payload}
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			metrics.IncBusDropped()
		}
	}
}

// SubscriberCount reports the current number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
