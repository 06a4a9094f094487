package models

import "time"

// Sender identifies who produced a message in a sales conversation
type Sender string

const (
	SenderAgent    Sender = "agent"
	SenderCustomer Sender = "customer"
)

// Message is one utterance parsed out of a conversation transcript.
// A zero Timestamp means the source line carried no timestamp.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
}

// HasTimestamp reports whether the source line carried a timestamp.
func (m Message) HasTimestamp() bool {
	return !m.Timestamp.IsZero()
}
