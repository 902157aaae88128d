// Package metrics carries call and transcript measurements from the session
// loop to observers (logs, timelines, Prometheus).
package metrics

import "time"

// Event names recorded by the bridge.
const (
	EventSessionStarted  = "session_started"
	EventSessionRejected = "session_rejected"
	EventSessionEnded    = "session_ended"
	EventSpeechStarted   = "speech_started"
	EventDraft           = "transcript_draft"
	EventFinal           = "transcript_final"
	EventAudioIn         = "audio_in"
	EventAudioDropped    = "audio_dropped"
	EventSTTConnect      = "stt_connect"
	EventPublishOK       = "publish_ok"
	EventPublishError    = "publish_error"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Tag returns the tag value or "".
func (e MetricsEvent) Tag(key string) string {
	if e.Tags == nil {
		return ""
	}
	return e.Tags[key]
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
