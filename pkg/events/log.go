package events

import (
	"log/slog"

	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/redact"
)

// LogHandler writes every event to a structured logger. Text is redacted.
type LogHandler struct {
	logger *slog.Logger
}

func NewLogHandler(base *slog.Logger) *LogHandler {
	if base == nil {
		base = slog.Default()
	}
	return &LogHandler{logger: logging.NewComponentLogger(base, "transcript")}
}

func (h *LogHandler) Handle(ev Event) {
	attrs := []any{
		"call_sid", ev.CallSID,
		"stream_id", ev.StreamID,
		"sequence", ev.Sequence,
	}
	switch ev.Type {
	case TypeSpeechStarted:
		h.logger.Info("speech_started", attrs...)
	case TypeDraft:
		h.logger.Debug("transcript_draft", append(attrs, "text", redact.Text(ev.Text))...)
	case TypeFinal:
		h.logger.Info("transcript_final", append(attrs, "text", redact.Text(ev.Text), "utterances", len(ev.History))...)
	}
}

var _ Handler = (*LogHandler)(nil)
