package observers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/callscribe/pkg/metrics"
	"github.com/harunnryd/callscribe/pkg/redact"
)

func tags(trace string) map[string]string {
	return map[string]string{"call_sid": "CA1", "stream_id": "MZ1", "trace_id": trace}
}

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSessionStarted, Time: time.Now(), Tags: tags("trace-1")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventAudioIn, Time: time.Now(), Tags: tags("trace-1")})
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventFinal,
		Time:   time.Now(),
		Tags:   tags("trace-1"),
		Fields: map[string]any{"text": "hello "},
	})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSessionEnded, Time: time.Now(), Tags: tags("trace-1")})

	b, err := os.ReadFile(filepath.Join(dir, "trace-1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines without audio events, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"event":"transcript_final"`) || !strings.Contains(lines[1], `"text":"hello "`) {
		t.Fatalf("expected final transcript line, got %s", lines[1])
	}
	if len(obs.files) != 0 {
		t.Fatalf("expected file closed after session end")
	}
}

func TestTimelineObserverRedactsText(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventFinal,
		Time:   time.Now(),
		Tags:   tags("trace/2"),
		Fields: map[string]any{"text": "mail me at a@b.com "},
	})
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "trace_2.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(b), "a@b.com") {
		t.Fatalf("expected email redacted, got %s", b)
	}
}

func TestTimelineObserverWithoutDirIsNoop(t *testing.T) {
	obs := NewTimelineObserver("")
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFinal, Tags: tags("x")})
	if len(obs.files) != 0 {
		t.Fatalf("expected no files")
	}
}

func TestUsageObserverWritesSummaryOnEnd(t *testing.T) {
	dir := t.TempDir()
	obs := NewUsageObserver(dir)
	audio := map[string]any{"sample_rate": 8000, "channels": 1}
	for i := 0; i < 50; i++ {
		obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventAudioIn, Value: 160, Tags: tags("tr"), Fields: audio})
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventDraft, Tags: tags("tr")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFinal, Tags: tags("tr")})

	sum, ok := obs.Summary("tr")
	if !ok || sum.AudioFrames != 50 {
		t.Fatalf("expected running summary with 50 frames, got %+v", sum)
	}
	if sum.STTAudioSeconds < 0.999 || sum.STTAudioSeconds > 1.001 {
		t.Fatalf("expected 1s of audio, got %f", sum.STTAudioSeconds)
	}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSessionEnded, Value: 2, Tags: map[string]string{"trace_id": "tr", "reason": "completed"}})
	b, err := os.ReadFile(filepath.Join(dir, "tr.usage.json"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(b), `"utterances": 1`) || !strings.Contains(string(b), `"end_reason": "completed"`) {
		t.Fatalf("unexpected usage summary: %s", b)
	}
	if _, ok := obs.Summary("tr"); ok {
		t.Fatalf("expected summary dropped after end")
	}
}

func TestPurgeArtifactsKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"a.jsonl", "a.usage.json", "notes.txt"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "fresh.jsonl"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("expected notes.txt kept, got %v", err)
	}
	if n, err := PurgeArtifacts(filepath.Join(dir, "missing"), time.Hour); n != 0 || err != nil {
		t.Fatalf("expected missing dir to be a noop, got %d %v", n, err)
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := metrics.NewMemoryObserver(), metrics.NewMemoryObserver()
	m := NewMultiObserver(a, nil, b)
	m.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFinal})
	if a.Count(metrics.EventFinal) != 1 || b.Count(metrics.EventFinal) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("expected no close error, got %v", err)
	}
}
