package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jordanhubbard/convreview/pkg/messages"
)

const subjectPrefix = "convreview."

// NatsMessageBus publishes pipeline events to NATS JetStream
type NatsMessageBus struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	mu            sync.Mutex
	subscriptions map[string]*nats.Subscription
	streamName    string
	url           string
}

// Config holds NATS configuration
type Config struct {
	URL        string        // NATS server URL (e.g., "nats://nats:4222")
	StreamName string        // JetStream stream name (default: "CONVREVIEW")
	Timeout    time.Duration // Connection timeout
}

// NewNatsMessageBus connects to NATS and makes sure the event stream exists.
func NewNatsMessageBus(cfg Config) (*NatsMessageBus, error) {
	if cfg.URL == "" {
		cfg.URL = "nats://localhost:4222"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "CONVREVIEW"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[MessageBus] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[MessageBus] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	mb := &NatsMessageBus{
		conn:          nc,
		js:            js,
		subscriptions: make(map[string]*nats.Subscription),
		streamName:    cfg.StreamName,
		url:           cfg.URL,
	}

	if err := mb.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	log.Printf("[MessageBus] Connected to NATS at %s with JetStream stream %s", cfg.URL, cfg.StreamName)
	return mb, nil
}

// ensureStream creates or updates the JetStream stream. Limits retention lets
// several consumers read the same events.
func (mb *NatsMessageBus) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      mb.streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := mb.js.StreamInfo(mb.streamName); err != nil {
		if _, err := mb.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Printf("[MessageBus] Created JetStream stream: %s", mb.streamName)
		return nil
	}
	if _, err := mb.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// PublishEvent publishes an event on convreview.events.<type>
func (mb *NatsMessageBus) PublishEvent(ctx context.Context, event *messages.EventMessage) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := event.Subject()
	if _, err := mb.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}
	return nil
}

// SubscribeEvents attaches a durable consumer to events matching eventType.
// Event types are dotted ("analysis.created"), so "" selects every type
// through the ">" wildcard; "analysis.*" selects one family.
func (mb *NatsMessageBus) SubscribeEvents(eventType, consumer string, handler func(*messages.EventMessage)) error {
	if eventType == "" || eventType == "*" {
		eventType = ">"
	}
	subject := subjectPrefix + "events." + eventType
	durable := "events-" + consumerName(consumer, eventType)

	sub, err := mb.js.Subscribe(subject, func(msg *nats.Msg) {
		var event messages.EventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("[MessageBus] Failed to unmarshal event: %v", err)
			_ = msg.Term()
			return
		}
		handler(&event)
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.AckExplicit(),
		nats.MaxDeliver(3),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	mb.mu.Lock()
	mb.subscriptions[subject] = sub
	mb.mu.Unlock()
	log.Printf("[MessageBus] Subscribed to %s with consumer %s", subject, durable)
	return nil
}

// consumerName builds a durable name; NATS forbids dots and wildcards in it.
func consumerName(consumer, eventType string) string {
	name := consumer
	if name == "" {
		name = eventType
	}
	return strings.NewReplacer(".", "-", "*", "all", ">", "all", " ", "-").Replace(name)
}

// Close closes all subscriptions and the NATS connection
func (mb *NatsMessageBus) Close() error {
	mb.mu.Lock()
	for subject, sub := range mb.subscriptions {
		_ = sub.Unsubscribe()
		delete(mb.subscriptions, subject)
	}
	mb.mu.Unlock()

	mb.conn.Close()
	log.Printf("[MessageBus] Closed NATS connection")
	return nil
}

// Health returns the health status of the NATS connection
func (mb *NatsMessageBus) Health() error {
	if mb.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !mb.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := mb.js.StreamInfo(mb.streamName); err != nil {
		return fmt.Errorf("JetStream stream %s is unhealthy: %w", mb.streamName, err)
	}
	return nil
}
