package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
)

// LatencyObserver logs, per utterance, the time from speech start to the
// first draft and to the finalized transcript.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*utteranceTrace
	log    *slog.Logger
}

type utteranceTrace struct {
	speech     time.Time
	firstDraft time.Time
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	return &LatencyObserver{
		traces: make(map[string]*utteranceTrace),
		log:    logging.NewComponentLogger(log, "latency"),
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := callID(ev)
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventSpeechStarted:
		o.traces[id] = &utteranceTrace{speech: ev.Time}
	case metrics.EventDraft:
		if t := o.traces[id]; t != nil && t.firstDraft.IsZero() {
			t.firstDraft = ev.Time
		}
	case metrics.EventFinal:
		t := o.traces[id]
		if t == nil {
			return
		}
		o.log.Info("utterance_latency",
			"call_sid", ev.Tag("call_sid"),
			"trace_id", ev.Tag("trace_id"),
			"first_draft_ms", durationMs(t.speech, t.firstDraft),
			"final_ms", durationMs(t.speech, ev.Time))
		// Fragments left after a partial drain continue without a new
		// speech start, so the next utterance is timed from this final.
		o.traces[id] = &utteranceTrace{speech: ev.Time}
	case metrics.EventSessionEnded:
		delete(o.traces, id)
	}
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

var _ metrics.Observer = (*LatencyObserver)(nil)
