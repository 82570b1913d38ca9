// Package events defines the worker event vocabulary and the sink
// contract used to drain it.
package events

import "time"

// Type enumerates the fixed event vocabulary a worker emits.
type Type string

const (
	TypeLog         Type = "log"
	TypeProgress    Type = "progress"
	TypeError       Type = "error"
	TypeMessageSent Type = "message_sent"
	TypeNeed2FA     Type = "need_2fa"
	TypeComplete    Type = "complete"
	// TypeNewReply is emitted by the reply monitor, not by workers.
	TypeNewReply Type = "new_reply"
)

// Event is one structured lifecycle event. Payload keys depend on Type.
type Event struct {
	Type      Type           `json:"type"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Source    string         `json:"source,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Sink receives events fire-and-forget. Implementations must never block
// the producing worker; drop or buffer instead.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Publish implements Sink.
func (f SinkFunc) Publish(ev Event) { f(ev) }

// Discard is a Sink that drops everything.
var Discard = SinkFunc(func(Event) {})

// New builds an event with the timestamp set.
func New(t Type, workerID string, payload map[string]any) Event {
	return Event{
		Type:      t,
		WorkerID:  workerID,
		Source:    "engine",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Multi fans one event out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Publish(ev)
			}
		}
	})
}
