package observers

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/callscribe/pkg/metrics"
)

func TestLatencyObserverTimesLeftoverUtterance(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewJSONHandler(&buf, nil)))

	start := time.Now()
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }
	for _, ev := range []metrics.MetricsEvent{
		{Name: metrics.EventSpeechStarted, Time: at(0)},
		{Name: metrics.EventDraft, Time: at(100)},
		{Name: metrics.EventFinal, Time: at(400)},
		// leftover fragments: no new speech start
		{Name: metrics.EventDraft, Time: at(500)},
		{Name: metrics.EventFinal, Time: at(900)},
	} {
		ev.Tags = tags("trace-1")
		obs.RecordEvent(ev)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 latency lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"first_draft_ms":100`) || !strings.Contains(lines[1], `"final_ms":500`) {
		t.Fatalf("expected leftover utterance timed from previous final, got %s", lines[1])
	}
}

func TestLatencyObserverForgetsEndedSession(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewJSONHandler(&buf, nil)))

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSpeechStarted, Time: time.Now(), Tags: tags("trace-1")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSessionEnded, Time: time.Now(), Tags: tags("trace-1")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFinal, Time: time.Now(), Tags: tags("trace-1")})

	if buf.Len() != 0 {
		t.Fatalf("expected no latency line after session end, got %s", buf.String())
	}
}
