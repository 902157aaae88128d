package deepgram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/harunnryd/callscribe/pkg/frames"
)

func newMessage(start float64, text string, words int, final bool) *msginterfaces.MessageResponse {
	mr := &msginterfaces.MessageResponse{Start: start, IsFinal: final}
	mr.Channel.Alternatives = []msginterfaces.Alternative{{
		Transcript: text,
		Words:      make([]msginterfaces.Word, words),
	}}
	return mr
}

func TestMessageMapsToFragment(t *testing.T) {
	s := New(Config{StreamID: "stream-1", CallSID: "CA1"})
	cb := &callback{parent: s}

	if err := cb.Message(newMessage(1.5, "hello world", 2, true)); err != nil {
		t.Fatalf("message error: %v", err)
	}
	ev := <-s.Results()
	if ev.Fragment == nil {
		t.Fatalf("expected fragment event")
	}
	f := *ev.Fragment
	if f.Start != 1.5 || f.Text != "hello world" || !f.IsFinal || f.Words != 2 {
		t.Fatalf("unexpected fragment %+v", f)
	}
}

func TestMessageWithoutAlternativesIgnored(t *testing.T) {
	s := New(Config{})
	cb := &callback{parent: s}

	if err := cb.Message(&msginterfaces.MessageResponse{}); err != nil {
		t.Fatalf("message error: %v", err)
	}
	select {
	case ev := <-s.Results():
		t.Fatalf("expected no event, got %+v", ev)
	default:
	}
}

func TestEmptyTranscriptStillForwardedWithZeroWords(t *testing.T) {
	s := New(Config{})
	cb := &callback{parent: s}

	_ = cb.Message(newMessage(0, "", 0, false))
	ev := <-s.Results()
	if ev.Fragment == nil || ev.Fragment.HasSpeech() {
		t.Fatalf("expected speechless fragment, got %+v", ev)
	}
}

func TestUtteranceEndMapsToBoundary(t *testing.T) {
	s := New(Config{})
	cb := &callback{parent: s}

	if err := cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{LastWordEnd: 3.25}); err != nil {
		t.Fatalf("utterance end error: %v", err)
	}
	ev := <-s.Results()
	if ev.Boundary == nil || ev.Boundary.LastWordEnd != 3.25 {
		t.Fatalf("expected boundary at 3.25, got %+v", ev)
	}
}

func TestCloseCallbackClosesResults(t *testing.T) {
	s := New(Config{})
	cb := &callback{parent: s}

	_ = cb.Close(&msginterfaces.CloseResponse{})
	if _, ok := <-s.Results(); ok {
		t.Fatalf("expected closed results channel")
	}
	// Emitting after close must not panic.
	_ = cb.Message(newMessage(0, "late", 1, true))
	_ = s.Close()
}

func TestSendAudioBeforeStart(t *testing.T) {
	s := New(Config{})
	af := frames.NewAudioFrame("stream-1", 1, []byte{0xFF}, 8000, 1, nil)
	if err := s.SendAudio(af); err == nil {
		t.Fatalf("expected error before start")
	}
}

func TestDefaults(t *testing.T) {
	s := New(Config{})
	if s.cfg.SampleRate != 8000 {
		t.Fatalf("expected default sample rate 8000, got %d", s.cfg.SampleRate)
	}
	if s.cfg.Encoding != "mulaw" {
		t.Fatalf("expected default encoding mulaw, got %s", s.cfg.Encoding)
	}
}

// startedWithPipe mirrors Start without dialing Deepgram.
func startedWithPipe() *StreamingSTT {
	s := New(Config{StreamID: "stream-1", CallSID: "CA1"})
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pipeReader, s.pipeWriter = io.Pipe()
	return s
}

func TestSendAudioFailsAfterStreamExits(t *testing.T) {
	s := startedWithPipe()
	defer s.Close()

	s.pump(func(io.Reader) error {
		return errors.New("write: broken pipe")
	})

	done := make(chan error, 1)
	go func() {
		done <- s.SendAudio(frames.NewAudioFrame("stream-1", 1, []byte{0xFF}, 8000, 1, nil))
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected send error after stream exit")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected SendAudio to return after stream exit")
	}
	select {
	case _, ok := <-s.Results():
		if ok {
			t.Fatalf("expected closed results channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected results channel to close")
	}
}

func TestSendAudioReachesStream(t *testing.T) {
	s := startedWithPipe()
	got := make(chan []byte, 1)
	go s.pump(func(r io.Reader) error {
		b, err := io.ReadAll(r)
		got <- b
		return err
	})

	if err := s.SendAudio(frames.NewAudioFrame("stream-1", 1, []byte{0x01, 0x02}, 8000, 1, nil)); err != nil {
		t.Fatalf("send error: %v", err)
	}
	_ = s.Close()
	select {
	case b := <-got:
		if len(b) != 2 || b[0] != 0x01 || b[1] != 0x02 {
			t.Fatalf("expected payload 0x01 0x02, got %v", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected stream to finish after close")
	}
}

func TestEmitWaitsForRoomInsteadOfDropping(t *testing.T) {
	s := startedWithPipe()
	defer s.Close()
	cb := &callback{parent: s}

	for i := 0; i < cap(s.out); i++ {
		_ = cb.Message(newMessage(float64(i), "word", 1, false))
	}
	emitted := make(chan struct{})
	go func() {
		_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{LastWordEnd: 9})
		close(emitted)
	}()
	select {
	case <-emitted:
		t.Fatalf("expected boundary to wait while results are full")
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < cap(s.out); i++ {
		<-s.Results()
	}
	ev := <-s.Results()
	if ev.Boundary == nil || ev.Boundary.LastWordEnd != 9 {
		t.Fatalf("expected boundary after fragments, got %+v", ev)
	}
	<-emitted
}

func TestEmitReleasedByCancel(t *testing.T) {
	s := startedWithPipe()
	cb := &callback{parent: s}
	for i := 0; i < cap(s.out); i++ {
		_ = cb.Message(newMessage(0, "word", 1, false))
	}
	emitted := make(chan struct{})
	go func() {
		_ = cb.Message(newMessage(0, "late", 1, true))
		close(emitted)
	}()
	s.cancel()
	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatalf("expected cancel to release a blocked emit")
	}
	_ = s.Close()
}
