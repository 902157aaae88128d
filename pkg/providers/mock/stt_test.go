package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/callscribe/pkg/frames"
)

func TestScriptFromTranscript(t *testing.T) {
	script := ScriptFromTranscript("hello there", true)
	if len(script) != 3 {
		t.Fatalf("expected 3 events, got %d", len(script))
	}
	if script[0].Fragment == nil || script[0].Fragment.IsFinal {
		t.Fatalf("expected interim fragment first")
	}
	if f := script[1].Fragment; f == nil || !f.IsFinal || f.Words != 2 {
		t.Fatalf("expected final fragment with 2 words, got %+v", f)
	}
	if b := script[2].Boundary; b == nil || b.LastWordEnd < script[1].Fragment.Start {
		t.Fatalf("expected boundary covering the final fragment, got %+v", b)
	}
}

func TestSTTReplaysScriptOnFirstAudio(t *testing.T) {
	s := NewSTT(STTConfig{Transcript: "hi"})
	frame := frames.NewAudioFrame("MZ1", 0, []byte{1}, 8000, 1, nil)
	if err := s.SendAudio(frame); err == nil {
		t.Fatalf("expected error before start")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	_ = s.SendAudio(frame)
	_ = s.SendAudio(frame)
	if got := len(s.Results()); got != 2 {
		t.Fatalf("expected script replayed once (2 events), got %d", got)
	}
	if s.AudioFrames() != 2 {
		t.Fatalf("expected 2 frames, got %d", s.AudioFrames())
	}
	_ = s.Close()
	_ = s.Close()
	if _, ok := <-drain(s); ok {
		t.Fatalf("expected results closed")
	}
}

func TestSTTStartError(t *testing.T) {
	want := errors.New("refused")
	s := NewSTT(STTConfig{StartErr: want})
	if err := s.Start(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func drain(s *StreamingSTT) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		for range s.Results() {
		}
		close(out)
	}()
	return out
}
