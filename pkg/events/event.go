// Package events carries transcript signals from a call session to its subscribers.
package events

import "time"

// Type names a transcript signal.
type Type string

const (
	TypeSpeechStarted Type = "speech_started"
	TypeDraft         Type = "transcript_draft"
	TypeFinal         Type = "transcript_final"
)

// Event is a transcript signal tagged with the call it belongs to.
type Event struct {
	Type     Type   `json:"eventType"`
	CallSID  string `json:"callSid"`
	StreamID string `json:"streamId"`
	TraceID  string `json:"traceId,omitempty"`
	// Sequence orders events within one session, starting at 1.
	Sequence  int64    `json:"sequence"`
	Text      string   `json:"text,omitempty"`
	History   []string `json:"history,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Time returns the event timestamp.
func (e Event) Time() time.Time { return time.Unix(0, e.Timestamp) }

// Handler receives events synchronously, in emission order.
type Handler interface {
	Handle(ev Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ev Event)

func (f HandlerFunc) Handle(ev Event) { f(ev) }

// Multi fans an event out to every handler.
type Multi []Handler

func (m Multi) Handle(ev Event) {
	for _, h := range m {
		if h != nil {
			h.Handle(ev)
		}
	}
}
