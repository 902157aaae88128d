package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
	"github.com/harunnryd/callscribe/pkg/errorsx"
	"github.com/harunnryd/callscribe/pkg/events"
	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
	"github.com/harunnryd/callscribe/pkg/transcript"
)

// Session is one live call transcription. SubmitAudio and End are safe to
// call from any goroutine except a subscriber callback, which runs on the
// session loop and must not call End.
type Session struct {
	info      Info
	stt       stt.StreamingSTT
	agg       *transcript.Aggregator
	handlers  events.Multi
	obs       metrics.Observer
	logger    *slog.Logger
	manager   *Manager
	startedAt time.Time

	ready  atomic.Bool
	reason atomic.Pointer[string]
	seq    int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSession(ctx context.Context, cancel context.CancelFunc, info Info, adapter stt.StreamingSTT, m *Manager) *Session {
	s := &Session{
		info:      info,
		stt:       adapter,
		handlers:  m.handlers,
		obs:       m.obs,
		logger:    logging.NewCallLogger(m.logger, info.CallSID, info.StreamID, info.TraceID),
		manager:   m,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.agg = transcript.NewAggregator(transcript.ListenerFuncs{
		SpeechStarted: s.onSpeechStarted,
		Draft:         s.onDraft,
		Final:         s.onFinal,
	})
	return s
}

func (s *Session) Info() Info { return s.info }

// Ready reports whether audio is currently forwarded.
func (s *Session) Ready() bool { return s.ready.Load() }

// Done is closed once the session is fully torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// History returns the finalized utterances once the session has ended.
// While the session is live it returns nil, since the loop owns the log.
func (s *Session) History() []string {
	select {
	case <-s.done:
		return s.agg.History()
	default:
		return nil
	}
}

// SubmitAudio forwards one audio frame. Frames are dropped while the
// recognizer is not ready or after the session ended. Send errors are logged.
func (s *Session) SubmitAudio(frame frames.AudioFrame) {
	if !s.ready.Load() {
		s.recordAudio(metrics.EventAudioDropped, frame)
		return
	}
	if err := s.stt.SendAudio(frame); err != nil {
		s.logger.Warn("stt_send_failed",
			"reason_code", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonSTTSend))),
			"error", err.Error())
		return
	}
	s.recordAudio(metrics.EventAudioIn, frame)
}

func (s *Session) recordAudio(name string, frame frames.AudioFrame) {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  float64(len(frame.RawPayload())),
		Tags:   infoTags(s.info),
		Fields: map[string]any{"sample_rate": frame.Rate(), "channels": frame.Channels()},
	})
}

// End stops the session and waits until the gate is released. Repeated calls
// are no-ops.
func (s *Session) End() {
	s.EndWithReason("completed")
}

// EndWithReason is End with the reason reported in logs and metrics. Only the
// first reason is kept.
func (s *Session) EndWithReason(reason string) {
	s.setReason(reason)
	s.cancel()
	<-s.done
}

func (s *Session) setReason(reason string) {
	if reason == "" {
		reason = "completed"
	}
	s.reason.CompareAndSwap(nil, &reason)
}

func (s *Session) endReason() string {
	if v := s.reason.Load(); v != nil {
		return *v
	}
	return "completed"
}

func (s *Session) run() {
	defer s.teardown()
	results := s.stt.Results()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-results:
			if !ok {
				s.setReason("stt_closed")
				s.logger.Info("stt_transport_closed")
				return
			}
			s.agg.Apply(ev)
		}
	}
}

func (s *Session) teardown() {
	s.once.Do(func() {
		s.ready.Store(false)
		if err := s.stt.Close(); err != nil {
			s.logger.Warn("stt_close_failed", "error", err.Error())
		}
		s.manager.release(s)
		s.cancel()

		duration := time.Since(s.startedAt)
		reason := s.endReason()
		s.record(metrics.EventSessionEnded, duration.Seconds(), map[string]string{"reason": reason})
		s.logger.Info("session_ended",
			"reason", reason,
			"duration_ms", duration.Milliseconds(),
			"utterances", len(s.agg.History()))
		close(s.done)
	})
}

func (s *Session) record(name string, value float64, extra map[string]string) {
	tags := infoTags(s.info)
	for k, v := range extra {
		tags[k] = v
	}
	s.obs.RecordEvent(metrics.MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags})
}

func (s *Session) publish(typ events.Type, text string, history []string) {
	s.seq++
	s.handlers.Handle(events.Event{
		Type:      typ,
		CallSID:   s.info.CallSID,
		StreamID:  s.info.StreamID,
		TraceID:   s.info.TraceID,
		Sequence:  s.seq,
		Text:      text,
		History:   history,
		Timestamp: time.Now().UnixNano(),
	})
}

// Aggregator callbacks. They run on the session loop.

func (s *Session) onSpeechStarted() {
	s.record(metrics.EventSpeechStarted, 1, nil)
	s.publish(events.TypeSpeechStarted, "", nil)
}

func (s *Session) onDraft(text string) {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventDraft,
		Time:   time.Now(),
		Value:  1,
		Tags:   infoTags(s.info),
		Fields: map[string]any{"text": text},
	})
	s.publish(events.TypeDraft, text, nil)
}

func (s *Session) onFinal(text string, history []string) {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventFinal,
		Time:   time.Now(),
		Value:  1,
		Tags:   infoTags(s.info),
		Fields: map[string]any{"text": text, "utterances": len(history)},
	})
	s.publish(events.TypeFinal, text, history)
}
