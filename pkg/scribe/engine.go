// Package scribe wires a telephony transport, the session manager and the
// transcript subscribers into a runnable bridge.
package scribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/callscribe/pkg/configutil"
	"github.com/harunnryd/callscribe/pkg/errorsx"
	"github.com/harunnryd/callscribe/pkg/events"
	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
	"github.com/harunnryd/callscribe/pkg/observers"
	"github.com/harunnryd/callscribe/pkg/redact"
	"github.com/harunnryd/callscribe/pkg/resilience"
	"github.com/harunnryd/callscribe/pkg/runner"
	"github.com/harunnryd/callscribe/pkg/session"
	"github.com/harunnryd/callscribe/pkg/transports"
)

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Transport transports.Transport
	// Handlers receive every transcript event after the built-in log and
	// Kafka handlers.
	Handlers []events.Handler
	// Observers receive metrics events next to the built-in chain.
	Observers []metrics.Observer
}

type Engine struct {
	cfg       Config
	transport transports.Transport
	providers *ProviderRegistry
	manager   *session.Manager
	runner    *runner.LifecycleRunner
	publisher *events.KafkaPublisher
	prom      *metrics.PrometheusObserver
	usage     *observers.UsageObserver
	multiObs  *observers.MultiObserver
	asyncObs  *metrics.AsyncObserver
	logger    *slog.Logger

	ready     chan struct{}
	routed    chan struct{}
	routing   atomic.Bool
	readyOnce sync.Once
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	if opts.Transport == nil {
		return nil, errors.New("scribe: transport is required")
	}
	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)
	logger := logging.NewComponentLogger(slog.Default(), "engine")

	logger.Info("callscribe_init",
		"environment", cfg.Environment,
		"stt_provider", cfg.Vendors.STT.Provider,
		"transport", opts.Transport.Name(),
		"kafka_enabled", cfg.Publish.Kafka.Enabled,
		"redact_pii", cfg.Privacy.RedactPII,
	)

	factory, err := providers.BuildSTTFactory(cfg.Vendors.STT.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build stt factory: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		transport: opts.Transport,
		providers: providers,
		prom:      metrics.NewPrometheusObserver(),
		logger:    logger,
		ready:     make(chan struct{}),
		routed:    make(chan struct{}),
	}

	logObs := observers.NewLoggerObserver(slog.Default())
	logObs.Verbose = cfg.Observability.VerboseAudio
	// Prometheus counts every audio frame; only the per-frame log lines are thinned.
	obsList := []metrics.Observer{
		metrics.NewSamplingObserver(logObs, cfg.Observability.AudioSampleRate, metrics.EventAudioIn, metrics.EventAudioDropped),
		observers.NewLatencyObserver(slog.Default()),
		e.prom,
	}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		e.usage = observers.NewUsageObserver(dir)
		obsList = append(obsList, observers.NewTimelineObserver(dir), e.usage)
	}
	obsList = append(obsList, opts.Observers...)
	e.multiObs = observers.NewMultiObserver(obsList...)
	buffer := cfg.Observability.EventBuffer
	if buffer <= 0 {
		buffer = 2048
	}
	e.asyncObs = metrics.NewAsyncObserver(e.multiObs, buffer)

	e.publisher = events.NewKafkaPublisher(cfg.Publish.Kafka, e.asyncObs)
	handlers := []events.Handler{events.NewLogHandler(slog.Default()), e.publisher}
	handlers = append(handlers, opts.Handlers...)

	var breaker *resilience.CircuitBreaker
	if cfg.Session.BreakerThreshold > 0 {
		breaker = resilience.NewCircuitBreaker(cfg.Session.BreakerThreshold,
			configutil.Millis(cfg.Session.BreakerCooldownMS, 30*time.Second))
	}
	e.manager = session.NewManager(session.Config{
		Factory:  factory,
		Handlers: handlers,
		Observer: e.asyncObs,
		Retry: resilience.NewRetryPolicy(cfg.Session.ConnectRetries,
			configutil.Millis(cfg.Session.ConnectBackoffMS, 250*time.Millisecond)),
		Breaker: breaker,
		Logger:  slog.Default(),
	})

	if ba, ok := opts.Transport.(transports.BusyAware); ok {
		ba.SetBusyCheck(e.manager.Busy)
	}
	if hm, ok := opts.Transport.(transports.HandlerMounter); ok && cfg.Observability.MetricsPath != "" {
		hm.Handle(cfg.Observability.MetricsPath, e.prom.Handler())
	}

	e.runner = runner.NewLifecycleRunner(e, runner.Hooks{OnStart: e.start},
		configutil.Millis(cfg.Session.DrainTimeoutMS, 10*time.Second))
	return e, nil
}

// Run starts the transport and blocks until ctx is done or Stop is called.
// The bridge is drained before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	return e.runner.Run(ctx)
}

func (e *Engine) Stop() error {
	return e.runner.Stop()
}

// Ready is closed once the transport accepts calls.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

func (e *Engine) start(ctx context.Context) error {
	if dir := strings.TrimSpace(e.cfg.Observability.ArtifactsDir); dir != "" && e.cfg.Observability.RetentionDays > 0 {
		maxAge := time.Duration(e.cfg.Observability.RetentionDays) * 24 * time.Hour
		if n, err := observers.PurgeArtifacts(dir, maxAge); err != nil {
			e.logger.Warn("artifact_purge_failed", "dir", dir, "error", err.Error())
		} else if n > 0 {
			e.logger.Info("artifacts_purged", "dir", dir, "count", n)
		}
	}
	if err := e.transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport %s: %w", e.transport.Name(), err)
	}
	e.routing.Store(true)
	go e.routeTransport(ctx)

	fields := []any{"transport", e.transport.Name()}
	if rr, ok := e.transport.(transports.ReadyReporter); ok {
		for k, v := range rr.ReadyFields() {
			fields = append(fields, k, v)
		}
	}
	if e.cfg.Observability.MetricsPath != "" {
		fields = append(fields, "metrics_path", e.cfg.Observability.MetricsPath)
	}
	e.logger.Info("callscribe_ready", fields...)
	e.readyOnce.Do(func() { close(e.ready) })
	return nil
}

// Drain stops intake, ends the live session and flushes subscribers.
func (e *Engine) Drain() error {
	var errs error
	errs = errors.Join(errs, e.transport.Stop())
	if e.routing.Load() {
		<-e.routed
	}
	e.manager.Close()
	errs = errors.Join(errs, e.publisher.Close())
	e.asyncObs.Close()
	errs = errors.Join(errs, e.multiObs.Close())
	e.logger.Info("callscribe_drained", "dropped_metrics", e.asyncObs.Dropped())
	return errs
}

func (e *Engine) routeTransport(ctx context.Context) {
	defer close(e.routed)
	recv := e.transport.Recv()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-recv:
			if !ok {
				return
			}
			e.route(ctx, f)
		}
	}
}

func (e *Engine) route(ctx context.Context, f frames.Frame) {
	switch fr := f.(type) {
	case frames.AudioFrame:
		s := e.manager.Active()
		if s == nil || s.Info().StreamID != fr.StreamID() {
			e.dropAudio(fr)
			return
		}
		s.SubmitAudio(fr)
	case frames.SystemFrame:
		switch fr.Name() {
		case frames.SystemCallStart:
			e.beginSession(ctx, fr)
		case frames.SystemCallEnd:
			e.endSession(fr)
		}
	}
}

func (e *Engine) beginSession(ctx context.Context, f frames.SystemFrame) {
	meta := f.Meta()
	info := session.Info{
		CallSID:  meta[frames.MetaCallSID],
		StreamID: meta[frames.MetaStreamID],
		TraceID:  meta[frames.MetaTraceID],
		From:     meta[frames.MetaFromNumber],
	}
	if _, err := e.manager.Begin(ctx, info); err != nil {
		reason := "stt_unavailable"
		if errors.Is(err, session.ErrSessionAlreadyActive) {
			reason = "busy"
		}
		e.logger.Warn("call_rejected",
			"call_sid", info.CallSID,
			"stream_id", info.StreamID,
			"from", redact.Phone(info.From),
			"reason", reason,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		if sc, ok := e.transport.(transports.StreamCloser); ok {
			if cerr := sc.CloseStream(info.StreamID, reason); cerr != nil {
				e.logger.Warn("close_stream_failed", "stream_id", info.StreamID, "error", cerr.Error())
			}
		}
	}
}

func (e *Engine) endSession(f frames.SystemFrame) {
	meta := f.Meta()
	s := e.manager.Active()
	if s == nil || s.Info().StreamID != meta[frames.MetaStreamID] {
		return
	}
	reason := meta[frames.MetaCallEndReason]
	if reason == "" {
		reason = "completed"
	}
	s.EndWithReason(reason)
}

// dropAudio accounts for audio of streams that have no live session, such as
// a rejected second call or the tail of an ended one.
func (e *Engine) dropAudio(f frames.AudioFrame) {
	meta := f.Meta()
	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventAudioDropped,
		Time:  time.Now(),
		Value: float64(len(f.RawPayload())),
		Tags: map[string]string{
			"call_sid":  meta[frames.MetaCallSID],
			"stream_id": meta[frames.MetaStreamID],
			"trace_id":  meta[frames.MetaTraceID],
		},
	})
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Manager() *session.Manager { return e.manager }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

// Usage returns the per-call usage summary; ok is false without artifacts_dir.
func (e *Engine) Usage(callID string) (observers.UsageSummary, bool) {
	if e.usage == nil {
		return observers.UsageSummary{}, false
	}
	return e.usage.Summary(callID)
}

func (e *Engine) State() runner.State { return e.runner.State() }

var _ runner.Drainer = (*Engine)(nil)
