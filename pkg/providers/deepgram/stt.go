package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
	"github.com/harunnryd/callscribe/pkg/errorsx"
	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/redact"
	"github.com/harunnryd/callscribe/pkg/transcript"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	VADEvents      bool
	SmartFormat    bool
	UtteranceEndMS int
	StreamID       string
	CallSID        string
	TraceID        string
}

type StreamingSTT struct {
	cfg        Config
	dgClient   *client.WSCallback
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	metaLogged bool
	logger     *slog.Logger

	mu     sync.Mutex
	out    chan transcript.Event
	closed bool
}

func New(cfg Config) *StreamingSTT {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 8000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "mulaw"
	}
	logger := logging.NewComponentLogger(slog.Default(), "deepgram_stt").With(
		slog.String(frames.MetaStreamID, cfg.StreamID),
		slog.String(frames.MetaCallSID, cfg.CallSID),
	)
	return &StreamingSTT{
		cfg:    cfg,
		out:    make(chan transcript.Event, 256),
		logger: logger,
	}
}

func (s *StreamingSTT) Name() string { return "deepgram_streaming" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pipeReader, s.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		InterimResults: s.cfg.Interim,
		VadEvents:      s.cfg.VADEvents,
		SmartFormat:    s.cfg.SmartFormat,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", s.cfg.UtteranceEndMS)
	}

	s.logger.Info("initializing deepgram connection",
		slog.String("model", s.cfg.Model),
		slog.String("encoding", s.cfg.Encoding),
		slog.Int("sample_rate", s.cfg.SampleRate),
		slog.Int("utterance_end_ms", s.cfg.UtteranceEndMS),
		slog.Bool("interim", s.cfg.Interim))

	dgClient, err := client.NewWSUsingCallback(s.ctx, s.cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: s})
	if err != nil {
		s.logger.Error("deepgram_client_create_error", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	s.dgClient = dgClient

	if connected := s.dgClient.Connect(); !connected {
		s.logger.Error("deepgram_connect_failed")
		return errorsx.Newf(errorsx.ReasonSTTConnect, "deepgram connection failed")
	}
	s.logger.Info("deepgram_connected")

	go s.pump(s.dgClient.Stream)
	return nil
}

// pump feeds piped audio to stream until it returns. Afterwards writes to the
// pipe fail and the results channel is closed.
func (s *StreamingSTT) pump(stream func(io.Reader) error) {
	err := stream(s.pipeReader)
	if err != nil && s.ctx.Err() == nil {
		s.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
	}
	if err == nil {
		err = io.ErrClosedPipe
	}
	_ = s.pipeReader.CloseWithError(err)
	s.closeResults()
}

func (s *StreamingSTT) Close() error {
	s.logger.Info("closing deepgram connection")
	if s.cancel != nil {
		s.cancel()
	}
	if s.pipeWriter != nil {
		_ = s.pipeWriter.Close()
	}
	if s.dgClient != nil {
		s.dgClient.Stop()
	}
	s.closeResults()
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	if s.pipeWriter == nil {
		return errorsx.Newf(errorsx.ReasonSTTSend, "not started")
	}
	if _, err := s.pipeWriter.Write(frame.RawPayload()); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	return nil
}

func (s *StreamingSTT) Results() <-chan transcript.Event { return s.out }

func (s *StreamingSTT) emit(ev transcript.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var done <-chan struct{}
	if s.ctx != nil {
		done = s.ctx.Done()
	}
	// Blocks until the session reads or the adapter is closed.
	select {
	case s.out <- ev:
	case <-done:
		s.logger.Warn("deepgram_event_dropped_on_close")
	}
}

func (s *StreamingSTT) closeResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// fragmentFromMessage maps a live transcription result onto a fragment.
// Results without alternatives are ignored.
func fragmentFromMessage(mr *msginterfaces.MessageResponse) (transcript.Fragment, bool) {
	if mr == nil || len(mr.Channel.Alternatives) == 0 {
		return transcript.Fragment{}, false
	}
	alt := mr.Channel.Alternatives[0]
	return transcript.Fragment{
		Start:   mr.Start,
		Text:    alt.Transcript,
		IsFinal: mr.IsFinal,
		Words:   len(alt.Words),
	}, true
}

// --- Callback Implementation ---

type callback struct {
	parent *StreamingSTT
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	f, ok := fragmentFromMessage(mr)
	if !ok {
		return nil
	}
	c.parent.logger.Debug("transcript_received",
		slog.String("transcript", redact.Text(f.Text)),
		slog.Float64("start", f.Start),
		slog.Int("words", f.Words),
		slog.Bool("is_final", f.IsFinal),
		slog.Bool("speech_final", mr.SpeechFinal))
	c.parent.emit(transcript.FragmentEvent(f))
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event", slog.String("reason", "native_vad_detection"))
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	if ur == nil {
		return nil
	}
	c.parent.logger.Debug("utterance_end_event", slog.Float64("last_word_end", ur.LastWordEnd))
	c.parent.emit(transcript.BoundaryEvent(transcript.Boundary{LastWordEnd: ur.LastWordEnd}))
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	c.parent.closeResults()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.String("data", string(byData)))
	return nil
}

var (
	_ stt.StreamingSTT                  = (*StreamingSTT)(nil)
	_ msginterfaces.LiveMessageCallback = (*callback)(nil)
)
