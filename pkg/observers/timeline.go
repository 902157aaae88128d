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
	"github.com/harunnryd/callscribe/pkg/redact"
)

// TimelineObserver writes one JSONL file per call, named after the trace id
// (stream id when no trace id is set). The file is closed when the session ends.
type TimelineObserver struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

func NewTimelineObserver(dir string) *TimelineObserver {
	return &TimelineObserver{dir: dir, files: make(map[string]*os.File)}
}

func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" || ev.Name == metrics.EventAudioIn || ev.Name == metrics.EventAudioDropped {
		return
	}
	id := callID(ev)
	if id == "" {
		return
	}
	entry := timelineEvent{
		Time:     ev.Time.UTC(),
		Event:    ev.Name,
		CallSID:  ev.Tag("call_sid"),
		StreamID: ev.Tag("stream_id"),
		TraceID:  ev.Tag("trace_id"),
		Value:    ev.Value,
		Fields:   sanitizeFields(ev.Fields),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	f := o.fileForLocked(id)
	if f == nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
	if ev.Name == metrics.EventSessionEnded || ev.Name == metrics.EventSessionRejected {
		_ = f.Close()
		delete(o.files, sanitizeID(id))
	}
}

// Close closes any open files.
func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for _, f := range o.files {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.files = make(map[string]*os.File)
	return err
}

type timelineEvent struct {
	Time     time.Time      `json:"time"`
	Event    string         `json:"event"`
	CallSID  string         `json:"call_sid,omitempty"`
	StreamID string         `json:"stream_id,omitempty"`
	TraceID  string         `json:"trace_id,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

func (o *TimelineObserver) fileForLocked(id string) *os.File {
	safe := sanitizeID(id)
	if safe == "" {
		return nil
	}
	if f := o.files[safe]; f != nil {
		return f
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil
	}
	path := filepath.Join(o.dir, safe+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	o.files[safe] = f
	return f
}

func callID(ev metrics.MetricsEvent) string {
	if id := ev.Tag("trace_id"); id != "" {
		return id
	}
	return ev.Tag("stream_id")
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// sanitizeFields redacts string values. Transcript text is the only free text
// the session puts into fields.
func sanitizeFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = redact.Text(s)
			continue
		}
		out[k] = v
	}
	return out
}

var _ metrics.Observer = (*TimelineObserver)(nil)
