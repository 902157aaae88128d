package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/harunnryd/callscribe/pkg/errorsx"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/metrics"
)

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	TopicPartial string   `mapstructure:"topic_partial"`
	TopicFinal   string   `mapstructure:"topic_final"`
	Principal    string   `mapstructure:"principal"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes draft and final transcripts to separate topics.
// When disabled it only logs, which keeps the handler chain identical in development.
type KafkaPublisher struct {
	writerPartial messageWriter
	writerFinal   messageWriter
	principal     string
	topicPartial  string
	topicFinal    string
	enabled       bool
	obs           metrics.Observer
	logger        *slog.Logger
}

// NewKafkaPublisher creates the publisher. Writers are asynchronous so that
// Handle never blocks the session loop on broker round trips.
func NewKafkaPublisher(cfg KafkaConfig, obs metrics.Observer) *KafkaPublisher {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if cfg.TopicPartial == "" {
		cfg.TopicPartial = "transcripts.partial"
	}
	if cfg.TopicFinal == "" {
		cfg.TopicFinal = "transcripts.final"
	}
	p := &KafkaPublisher{
		principal:    cfg.Principal,
		topicPartial: cfg.TopicPartial,
		topicFinal:   cfg.TopicFinal,
		obs:          obs,
		logger:       logging.NewComponentLogger(slog.Default(), "kafka_publisher"),
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.logger.Info("kafka_disabled", "mode", "log_only")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}
	p.writerPartial = p.newWriter(cfg.Brokers, cfg.TopicPartial, transport)
	p.writerFinal = p.newWriter(cfg.Brokers, cfg.TopicFinal, transport)
	p.enabled = true

	p.logger.Info("kafka_publisher_initialized",
		"brokers", cfg.Brokers,
		"topic_partial", cfg.TopicPartial,
		"topic_final", cfg.TopicFinal,
		"principal", cfg.Principal)
	return p
}

func (p *KafkaPublisher) newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport:    transport,
		Completion: func(messages []kafka.Message, err error) {
			p.record(topic, len(messages), err)
		},
	}
}

// Handle implements Handler. Speech-start events are not published.
func (p *KafkaPublisher) Handle(ev Event) {
	var err error
	switch ev.Type {
	case TypeDraft:
		err = p.publish(context.Background(), p.writerPartial, p.topicPartial, ev)
	case TypeFinal:
		err = p.publish(context.Background(), p.writerFinal, p.topicFinal, ev)
	default:
		return
	}
	if err != nil {
		p.logger.Warn("kafka_publish_failed",
			"call_sid", ev.CallSID,
			"event_type", string(ev.Type),
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, writer messageWriter, topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPublish)
	}
	if !p.enabled || writer == nil {
		p.logger.Debug("publishing_event", "topic", topic, "key", ev.CallSID, "payload", string(payload))
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(ev.CallSID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.Type)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.record(topic, 1, err)
		return errorsx.Wrap(err, errorsx.ReasonPublish)
	}
	return nil
}

func (p *KafkaPublisher) record(topic string, n int, err error) {
	name := metrics.EventPublishOK
	if err != nil {
		name = metrics.EventPublishError
	}
	p.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: float64(n),
		Tags:  map[string]string{"topic": topic, "component": "kafka"},
	})
}

// Close flushes and closes both writers.
func (p *KafkaPublisher) Close() error {
	var errs error
	for _, w := range []messageWriter{p.writerPartial, p.writerFinal} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		p.logger.Error("kafka_close_error", "error", errs.Error())
	}
	return errs
}

var _ Handler = (*KafkaPublisher)(nil)
