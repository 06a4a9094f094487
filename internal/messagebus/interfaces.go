package messagebus

import (
	"context"
	"sync"

	"github.com/jordanhubbard/convreview/pkg/messages"
)

// EventPublisher abstracts event publishing for testability.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *messages.EventMessage) error
}

// Verify implementations at compile time.
var (
	_ EventPublisher = (*NatsMessageBus)(nil)
	_ EventPublisher = (*Recorder)(nil)
)

// Recorder is an in-process EventPublisher that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []*messages.EventMessage
}

// PublishEvent records event.
func (r *Recorder) PublishEvent(ctx context.Context, event *messages.EventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []*messages.EventMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*messages.EventMessage, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
