// Package observers contains metrics.Observer implementations that turn
// session measurements into logs and per-call artifacts.
package observers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
)

// LoggerObserver logs every event at debug level. Per-frame audio events are
// skipped unless Verbose is set.
type LoggerObserver struct {
	log     *slog.Logger
	Verbose bool
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	return &LoggerObserver{log: logging.NewComponentLogger(log, "metrics")}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	if !o.Verbose && (ev.Name == metrics.EventAudioIn || ev.Name == metrics.EventAudioDropped) {
		return
	}
	if !o.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := make([]slog.Attr, 0, 3+len(ev.Tags))
	attrs = append(attrs,
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	)
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range sanitizeFields(ev.Fields) {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), slog.LevelDebug, "metrics_event", attrs...)
}

// MultiObserver fans events out to every observer in order.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}

// Close closes every observer that implements io.Closer.
func (m *MultiObserver) Close() error {
	var errs error
	for _, obs := range m.list {
		if c, ok := obs.(io.Closer); ok {
			errs = errors.Join(errs, c.Close())
		}
	}
	return errs
}
