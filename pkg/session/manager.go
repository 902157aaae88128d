// Package session owns the single live transcription session of the bridge.
//
// Manager.Begin is the only way to obtain a Session and fails fast while
// another one is live. Each Session runs one goroutine that owns its
// transcript.Aggregator; recognizer results reach it over a channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
	"github.com/harunnryd/callscribe/pkg/errorsx"
	"github.com/harunnryd/callscribe/pkg/events"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
	"github.com/harunnryd/callscribe/pkg/resilience"
)

// ErrSessionAlreadyActive is returned by Begin while a session is live.
var ErrSessionAlreadyActive = errors.New("session already active")

// Info identifies the call a session transcribes.
type Info struct {
	CallSID  string
	StreamID string
	TraceID  string
	From     string
}

type Config struct {
	// Factory builds a fresh recognizer adapter per connection attempt.
	Factory  stt.Factory
	Handlers []events.Handler
	Observer metrics.Observer
	Retry    resilience.RetryPolicy
	// Breaker is optional.
	Breaker *resilience.CircuitBreaker
	Logger  *slog.Logger
}

// Manager hands out at most one live Session at a time.
type Manager struct {
	factory  stt.Factory
	handlers events.Multi
	obs      metrics.Observer
	retry    resilience.RetryPolicy
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger

	mu       sync.Mutex
	reserved bool
	pending  Info
	active   *Session
}

func NewManager(cfg Config) *Manager {
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Manager{
		factory:  cfg.Factory,
		handlers: events.Multi(cfg.Handlers),
		obs:      cfg.Observer,
		retry:    cfg.Retry,
		breaker:  cfg.Breaker,
		logger:   logging.NewComponentLogger(base, "session"),
	}
}

// Begin opens a session for info. It blocks until the recognizer is
// connected. While another session is live it returns an error matching
// ErrSessionAlreadyActive and leaves that session untouched.
func (m *Manager) Begin(ctx context.Context, info Info) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.reserve(info); err != nil {
		m.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventSessionRejected,
			Time: time.Now(),
			Tags: infoTags(info),
		})
		m.logger.Warn("session_rejected",
			"call_sid", info.CallSID,
			"stream_id", info.StreamID,
			"reason_code", string(errorsx.Reason(err)))
		return nil, err
	}

	adapter, err := m.connect(ctx, info)
	if err != nil {
		m.release(nil)
		m.logger.Error("session_start_failed",
			"call_sid", info.CallSID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		return nil, err
	}

	// The session outlives the caller's context (often an HTTP handshake)
	// but keeps its values.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(sctx, cancel, info, adapter, m)

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()

	s.ready.Store(true)
	go s.run()

	m.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventSessionStarted,
		Time: s.startedAt,
		Tags: infoTags(info),
	})
	s.logger.Info("session_started", "stt", adapter.Name())
	return s, nil
}

func (m *Manager) reserve(info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved {
		return errorsx.Wrap(
			fmt.Errorf("%w: call %s is still being transcribed", ErrSessionAlreadyActive, m.pending.CallSID),
			errorsx.ReasonSessionActive,
		)
	}
	m.reserved = true
	m.pending = info
	return nil
}

// release frees the gate. A stale session (already replaced) is ignored.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s != nil && m.active != s {
		return
	}
	m.active = nil
	m.reserved = false
	m.pending = Info{}
}

func (m *Manager) connect(ctx context.Context, info Info) (stt.StreamingSTT, error) {
	if m.factory == nil {
		return nil, errorsx.Newf(errorsx.ReasonSessionStart, "no stt factory configured")
	}
	if !m.breaker.Allow() {
		return nil, errorsx.Wrap(resilience.ErrCircuitOpen, errorsx.ReasonSTTConnect)
	}
	var adapter stt.StreamingSTT
	err := m.retry.Do(ctx, func(attempt int) error {
		a := m.factory(info.CallSID, info.StreamID, info.TraceID)
		if a == nil {
			return errorsx.Newf(errorsx.ReasonSessionStart, "stt factory returned nil")
		}
		if err := a.Start(ctx); err != nil {
			_ = a.Close()
			m.breaker.OnError(err)
			m.recordConnect(a.Name(), "error", info)
			m.logger.Warn("stt_connect_failed",
				"call_sid", info.CallSID,
				"attempt", attempt+1,
				"error", err.Error())
			return err
		}
		m.breaker.OnSuccess()
		m.recordConnect(a.Name(), "ok", info)
		adapter = a
		return nil
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	return adapter, nil
}

func (m *Manager) recordConnect(provider, outcome string, info Info) {
	tags := infoTags(info)
	tags["provider"] = provider
	tags["outcome"] = outcome
	m.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSTTConnect, Time: time.Now(), Tags: tags})
}

// Active returns the live session or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Busy reports whether Begin would currently be rejected.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserved
}

// Close ends the live session, if any.
func (m *Manager) Close() {
	if s := m.Active(); s != nil {
		s.EndWithReason("shutdown")
	}
}

func infoTags(info Info) map[string]string {
	return map[string]string{
		"call_sid":  info.CallSID,
		"stream_id": info.StreamID,
		"trace_id":  info.TraceID,
	}
}
