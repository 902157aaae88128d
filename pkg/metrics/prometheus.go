package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callscribe"

// PrometheusObserver turns observer events into Prometheus series on a
// private registry, so several instances (tests) never collide.
type PrometheusObserver struct {
	registry *prometheus.Registry

	SessionsStarted  prometheus.Counter
	SessionsRejected prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionDuration  prometheus.Histogram

	SpeechStarted      prometheus.Counter
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	AudioFramesReceived prometheus.Counter
	AudioBytesReceived  prometheus.Counter
	AudioFramesDropped  prometheus.Counter

	STTConnectAttempts *prometheus.CounterVec
	KafkaPublish       *prometheus.CounterVec
}

func NewPrometheusObserver() *PrometheusObserver {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &PrometheusObserver{
		registry: reg,
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of transcription sessions started",
		}),
		SessionsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rejected_total",
			Help:      "Calls rejected because a session was already active",
		}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions ended",
		}, []string{"reason"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions (0 or 1)",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of transcription sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		SpeechStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_started_total",
			Help:      "Utterances that started accumulating",
		}),
		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_draft_total",
			Help:      "Total number of draft transcripts emitted",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of finalized utterances emitted",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames forwarded to the recognizer",
		}),
		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes forwarded to the recognizer",
		}),
		AudioFramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Audio frames dropped because no session was ready",
		}),
		STTConnectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_connect_total",
			Help:      "Recognizer connection attempts by outcome",
		}, []string{"provider", "outcome"}),
		KafkaPublish: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Kafka messages by topic and outcome",
		}, []string{"topic", "outcome"}),
	}
}

func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	switch ev.Name {
	case EventSessionStarted:
		p.SessionsStarted.Inc()
		p.SessionsActive.Inc()
	case EventSessionRejected:
		p.SessionsRejected.Inc()
	case EventSessionEnded:
		p.SessionsActive.Dec()
		p.SessionsEnded.WithLabelValues(labelOr(ev.Tag("reason"), "unknown")).Inc()
		if ev.Value > 0 {
			p.SessionDuration.Observe(ev.Value)
		}
	case EventSpeechStarted:
		p.SpeechStarted.Inc()
	case EventDraft:
		p.TranscriptsPartial.Inc()
	case EventFinal:
		p.TranscriptsFinal.Inc()
	case EventAudioIn:
		p.AudioFramesReceived.Inc()
		p.AudioBytesReceived.Add(ev.Value)
	case EventAudioDropped:
		p.AudioFramesDropped.Inc()
	case EventSTTConnect:
		p.STTConnectAttempts.WithLabelValues(labelOr(ev.Tag("provider"), "unknown"), labelOr(ev.Tag("outcome"), "unknown")).Inc()
	case EventPublishOK, EventPublishError:
		outcome := "ok"
		if ev.Name == EventPublishError {
			outcome = "error"
		}
		p.KafkaPublish.WithLabelValues(labelOr(ev.Tag("topic"), "unknown"), outcome).Add(ev.Value)
	}
}

// Registry exposes the private registry for tests and custom collectors.
func (p *PrometheusObserver) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
