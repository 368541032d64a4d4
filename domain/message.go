// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Message represents an immutable chat event.
type Message struct {
	Timestamp time.Time
	Sender    string `validate:"required"`
	Body      string
}

// NewMessage truncates the timestamp to the millisecond, the resolution
// every store and the wire format keep.
func NewMessage(at time.Time, sender, body string) Message {
	return Message{
		Timestamp: at.UTC().Truncate(time.Millisecond),
		Sender:    sender,
		Body:      body,
	}
}

// MessageFromMillis builds a Message from an epoch-milliseconds timestamp.
func MessageFromMillis(ms int64, sender, body string) Message {
	return NewMessage(time.UnixMilli(ms), sender, body)
}

func (m Message) Millis() int64 {
	return m.Timestamp.UnixMilli()
}

// Equal compares all three fields; instants are compared regardless of location.
func (m Message) Equal(other Message) bool {
	return m.Timestamp.Equal(other.Timestamp) &&
		m.Sender == other.Sender &&
		m.Body == other.Body
}

func (m Message) Validate() error {
	return validate.Struct(m)
}
