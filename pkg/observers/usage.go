package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/callscribe/pkg/metrics"
)

// UsageSummary is the per-call usage written next to the timeline.
type UsageSummary struct {
	CallSID         string  `json:"call_sid,omitempty"`
	StreamID        string  `json:"stream_id,omitempty"`
	TraceID         string  `json:"trace_id,omitempty"`
	STTAudioSeconds float64 `json:"stt_audio_seconds"`
	AudioFrames     int     `json:"audio_frames"`
	DroppedFrames   int     `json:"dropped_frames"`
	Drafts          int     `json:"drafts"`
	Utterances      int     `json:"utterances"`
	SessionSeconds  float64 `json:"session_seconds"`
	EndReason       string  `json:"end_reason,omitempty"`
	RecordedAtUTC   string  `json:"recorded_at_utc"`
}

// UsageObserver accumulates recognizer usage per call and writes
// <id>.usage.json when the session ends.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	switch ev.Name {
	case metrics.EventAudioIn, metrics.EventAudioDropped, metrics.EventDraft, metrics.EventFinal, metrics.EventSessionEnded:
	default:
		return
	}
	id := callID(ev)
	if id == "" {
		return
	}

	o.mu.Lock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{CallSID: ev.Tag("call_sid"), StreamID: ev.Tag("stream_id"), TraceID: ev.Tag("trace_id")}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventAudioIn:
		stat.AudioFrames++
		stat.STTAudioSeconds += audioSeconds(ev)
	case metrics.EventAudioDropped:
		stat.DroppedFrames++
	case metrics.EventDraft:
		stat.Drafts++
	case metrics.EventFinal:
		stat.Utterances++
	case metrics.EventSessionEnded:
		stat.SessionSeconds = ev.Value
		stat.EndReason = ev.Tag("reason")
		delete(o.stats, id)
		o.mu.Unlock()
		_ = o.write(id, stat)
		return
	}
	o.mu.Unlock()
}

// Summary returns a copy of the running summary for id.
func (o *UsageObserver) Summary(id string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat, ok := o.stats[id]
	if !ok {
		return UsageSummary{}, false
	}
	return *stat, true
}

// Close flushes summaries of sessions that never reported an end.
func (o *UsageObserver) Close() error {
	o.mu.Lock()
	pending := o.stats
	o.stats = make(map[string]*UsageSummary)
	o.mu.Unlock()
	var errs error
	for id, stat := range pending {
		errs = errors.Join(errs, o.write(id, stat))
	}
	return errs
}

func (o *UsageObserver) write(id string, stat *UsageSummary) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.dir, sanitizeID(id)+".usage.json"), b, 0o644)
}

// audioSeconds derives the frame duration from its byte count. μ-law carries
// one byte per sample.
func audioSeconds(ev metrics.MetricsEvent) float64 {
	rate, channels := intField(ev.Fields, "sample_rate"), intField(ev.Fields, "channels")
	if rate <= 0 {
		return 0
	}
	if channels <= 0 {
		channels = 1
	}
	return ev.Value / float64(rate*channels)
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

var _ metrics.Observer = (*UsageObserver)(nil)
