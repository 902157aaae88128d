package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/transcript"
)

type STTConfig struct {
	StreamID string
	CallSID  string
	TraceID  string
	// Script is replayed once, after the first audio frame.
	Script []transcript.Event
	// Transcript builds a default script when Script is empty.
	Transcript  string
	EmitInterim bool
	// StartErr is returned by Start.
	StartErr error
}

type StreamingSTT struct {
	cfg     STTConfig
	out     chan transcript.Event
	mu      sync.Mutex
	started bool
	closed  bool
	emitted bool
	audio   int
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	if len(cfg.Script) == 0 {
		cfg.Script = ScriptFromTranscript(cfg.Transcript, cfg.EmitInterim)
	}
	return &StreamingSTT{cfg: cfg, out: make(chan transcript.Event, len(cfg.Script)+16)}
}

// ScriptFromTranscript builds an optional interim fragment, a final fragment
// and a closing boundary for text.
func ScriptFromTranscript(text string, interim bool) []transcript.Event {
	if strings.TrimSpace(text) == "" {
		text = "mock transcript"
	}
	words := strings.Fields(text)
	end := float64(len(words)) * 0.4
	var script []transcript.Event
	if interim {
		script = append(script, transcript.FragmentEvent(transcript.Fragment{Start: 0, Text: words[0], Words: 1}))
	}
	script = append(script,
		transcript.FragmentEvent(transcript.Fragment{Start: 0, Text: text, IsFinal: true, Words: len(words)}),
		transcript.BoundaryEvent(transcript.Boundary{LastWordEnd: end}),
	)
	return script
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	_ = ctx
	if s.cfg.StartErr != nil {
		return s.cfg.StartErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	s.started = false
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	_ = frame
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return errors.New("not started")
	}
	s.audio++
	if s.emitted {
		return nil
	}
	s.emitted = true
	for _, ev := range s.cfg.Script {
		select {
		case s.out <- ev:
		default:
		}
	}
	return nil
}

// Push injects an event as if the recognizer produced it.
func (s *StreamingSTT) Push(ev transcript.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.out <- ev
}

// AudioFrames returns how many frames were accepted.
func (s *StreamingSTT) AudioFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

func (s *StreamingSTT) Results() <-chan transcript.Event { return s.out }

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
