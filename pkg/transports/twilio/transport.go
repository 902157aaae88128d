package twilio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/transports"
)

type Config struct {
	ServerAddr         string   `mapstructure:"server_addr"`
	PublicURL          string   `mapstructure:"public_url"`
	AuthToken          string   `mapstructure:"auth_token"`
	AccountSID         string   `mapstructure:"account_sid"`
	VoicePath          string   `mapstructure:"voice_path"`
	WebsocketPath      string   `mapstructure:"ws_path"`
	StatusCallbackPath string   `mapstructure:"status_callback_path"`
	VoiceGreeting      string   `mapstructure:"voice_greeting"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	// HangupRejected ends rejected calls through the REST API in addition to
	// closing their media stream. Needs AccountSID and AuthToken.
	HangupRejected bool `mapstructure:"hangup_rejected"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.StatusCallbackPath == "" {
		c.StatusCallbackPath = "/status"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Transport serves the Twilio voice webhook, status callback and Media
// Stream websocket, and emits call frames on Recv.
type Transport struct {
	cfg      Config
	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
	pts      *frames.PTSGen

	recvMu sync.RWMutex
	recvCh chan frames.Frame
	closed bool

	updateClient callUpdater
	busy         atomic.Pointer[func() bool]

	mu          sync.Mutex
	streams     map[string]*stream
	callStreams map[string]string

	draining atomic.Bool
}

// stream is one live Media Stream connection.
type stream struct {
	conn    *websocket.Conn
	callSID string
	traceID string
	from    string
	once    sync.Once
}

func (s *stream) close() error {
	var err error
	s.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
		logger:      logging.NewComponentLogger(slog.Default(), "twilio_transport"),
		pts:         frames.NewPTSGen(),
		recvCh:      make(chan frames.Frame, 512),
		streams:     make(map[string]*stream),
		callStreams: make(map[string]string),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	t.mux.HandleFunc(cfg.VoicePath, t.handleVoice)
	t.mux.Handle(cfg.WebsocketPath, t)
	t.mux.HandleFunc(cfg.StatusCallbackPath, t.handleStatusCallback)
	t.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return t
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

// Handle mounts an extra handler. Call before Start.
func (t *Transport) Handle(pattern string, h http.Handler) {
	t.mux.Handle(pattern, h)
}

// SetBusyCheck installs the check the voice webhook uses to reject calls.
func (t *Transport) SetBusyCheck(fn func() bool) {
	t.busy.Store(&fn)
}

func (t *Transport) isBusy() bool {
	fn := t.busy.Load()
	return fn != nil && *fn != nil && (*fn)()
}

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"webhook_url":         t.publicURL("https", "http", t.cfg.VoicePath),
		"status_callback_url": t.publicURL("https", "http", t.cfg.StatusCallbackPath),
		"stream_url":          t.publicURL("wss", "ws", t.cfg.WebsocketPath),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = t.server.Shutdown(ctx)
		cancel()
	}
	t.mu.Lock()
	open := t.streams
	t.streams = make(map[string]*stream)
	t.callStreams = make(map[string]string)
	t.mu.Unlock()
	for _, s := range open {
		_ = s.close()
	}

	t.recvMu.Lock()
	if !t.closed {
		t.closed = true
		close(t.recvCh)
	}
	t.recvMu.Unlock()
	return nil
}

// CloseStream hangs up a media stream. Closing the socket ends the
// <Connect> verb, which ends the call since nothing follows it.
func (t *Transport) CloseStream(streamID, reason string) error {
	t.mu.Lock()
	s := t.streams[streamID]
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	t.logger.Info("stream_closed_by_bridge", "stream_id", streamID, "call_sid", s.callSID, "reason", reason)
	var err error
	if t.cfg.HangupRejected {
		err = t.Hangup(context.Background(), s.callSID)
	}
	return errors.Join(err, s.close())
}

// Hangup completes a call through the REST API.
func (t *Transport) Hangup(ctx context.Context, callSID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(callSID) == "" {
		return errors.New("call sid required")
	}
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	updater := t.updateClient
	if updater == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: t.cfg.AccountSID,
			Password: t.cfg.AuthToken,
		})
		updater = rest.Api
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	_, err := updater.UpdateCall(callSID, params)
	return err
}

// Dial places an outbound call whose voice webhook points back at this server.
func (t *Transport) Dial(ctx context.Context, to, from, url string) (string, error) {
	return NewDialer(t.cfg).Dial(ctx, to, from, url)
}

func (t *Transport) publicURL(secureScheme, plainScheme, path string) string {
	if t.cfg.PublicURL != "" {
		return secureScheme + "://" + normalizePublicURL(t.cfg.PublicURL) + path
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return plainScheme + "://" + addr + path
}

// emit delivers a frame unless the transport is stopped. Audio is dropped
// when the buffer is full; system frames wait briefly.
func (t *Transport) emit(f frames.Frame) {
	t.recvMu.RLock()
	defer t.recvMu.RUnlock()
	if t.closed {
		return
	}
	if f.Kind() == frames.KindAudio {
		select {
		case t.recvCh <- f:
		default:
		}
		return
	}
	timer := time.NewTimer(time.Second)
	defer timer.Stop()
	select {
	case t.recvCh <- f:
	case <-timer.C:
		t.logger.Warn("system_frame_dropped", "stream_id", frames.StreamIDOf(f))
	}
}

func (t *Transport) attach(streamID string, s *stream) (previous *stream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.callSID != "" {
		if existing := t.callStreams[s.callSID]; existing != "" && existing != streamID {
			previous = t.streams[existing]
			delete(t.streams, existing)
		}
		t.callStreams[s.callSID] = streamID
	}
	t.streams[streamID] = s
	return previous
}

// detach forgets a stream and reports whether it was still attached, so
// call_end is emitted once per stream.
func (t *Transport) detach(streamID string) (*stream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[streamID]
	if !ok {
		return nil, false
	}
	delete(t.streams, streamID)
	if s.callSID != "" && t.callStreams[s.callSID] == streamID {
		delete(t.callStreams, s.callSID)
	}
	return s, true
}

func (t *Transport) streamForCall(callSID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callStreams[callSID]
}

func (t *Transport) metaForStream(streamID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	meta := map[string]string{frames.MetaStreamID: streamID, frames.MetaSource: "twilio"}
	if s := t.streams[streamID]; s != nil {
		meta[frames.MetaCallSID] = s.callSID
		meta[frames.MetaTraceID] = s.traceID
		if s.from != "" {
			meta[frames.MetaFromNumber] = s.from
		}
	}
	return meta
}

var (
	_ transports.Transport      = (*Transport)(nil)
	_ transports.StreamCloser   = (*Transport)(nil)
	_ transports.BusyAware      = (*Transport)(nil)
	_ transports.HandlerMounter = (*Transport)(nil)
	_ transports.OutboundDialer = (*Transport)(nil)
	_ transports.ReadyReporter  = (*Transport)(nil)
)
