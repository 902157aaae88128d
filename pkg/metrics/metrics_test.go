package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAsyncObserverDeliversBeforeClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 8)
	for i := 0; i < 5; i++ {
		async.RecordEvent(MetricsEvent{Name: EventDraft, Time: time.Now()})
	}
	async.Close()
	if got := mem.Count(EventDraft); got != 5 {
		t.Fatalf("expected 5 events, got %d", got)
	}
	async.RecordEvent(MetricsEvent{Name: EventDraft})
	if got := mem.Count(EventDraft); got != 5 {
		t.Fatalf("expected closed observer to ignore events, got %d", got)
	}
}

func TestSamplingObserverOnlyThinsNamedEvents(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0.25, EventAudioIn)
	for i := 0; i < 8; i++ {
		s.RecordEvent(MetricsEvent{Name: EventAudioIn})
		s.RecordEvent(MetricsEvent{Name: EventFinal})
	}
	if got := mem.Count(EventAudioIn); got != 2 {
		t.Fatalf("expected 2 sampled audio events, got %d", got)
	}
	if got := mem.Count(EventFinal); got != 8 {
		t.Fatalf("expected all final events, got %d", got)
	}
}

func TestSamplingObserverZeroRateDropsNamed(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0, EventAudioIn)
	s.RecordEvent(MetricsEvent{Name: EventAudioIn})
	s.RecordEvent(MetricsEvent{Name: EventSessionStarted})
	if len(mem.Events()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(mem.Events()))
	}
}

func TestPrometheusObserverExposesCounters(t *testing.T) {
	p := NewPrometheusObserver()
	p.RecordEvent(MetricsEvent{Name: EventSessionStarted})
	p.RecordEvent(MetricsEvent{Name: EventFinal})
	p.RecordEvent(MetricsEvent{Name: EventFinal})
	p.RecordEvent(MetricsEvent{Name: EventAudioIn, Value: 160})
	p.RecordEvent(MetricsEvent{Name: EventSessionEnded, Value: 3, Tags: map[string]string{"reason": "completed"}})

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"callscribe_sessions_started_total 1",
		"callscribe_transcripts_final_total 2",
		"callscribe_audio_bytes_received_total 160",
		`callscribe_sessions_ended_total{reason="completed"} 1`,
		"callscribe_sessions_active 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrometheusObserversDoNotShareRegistry(t *testing.T) {
	a := NewPrometheusObserver()
	b := NewPrometheusObserver()
	if a.Registry() == b.Registry() {
		t.Fatalf("expected separate registries")
	}
}
