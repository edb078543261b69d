package events

import (
	"time"

	"github.com/skobkin/rfmgo/internal/openthings"
)

// Publisher is the write side of the message bus.
type Publisher interface {
	Publish(topic string, msg any)
}

// RawFrame carries frame diagnostics for debug logs.
type RawFrame struct {
	Hex string
	Len int
}

// MessageReceived is a decoded frame observed during a run.
type MessageReceived struct {
	RunID   string
	Message openthings.Message
	At      time.Time
}

// RunStatus is a snapshot of a run's lifecycle.
type RunStatus struct {
	RunID     string
	Operation string
	State     string
	Result    string
	Err       string
	Timestamp time.Time
}
