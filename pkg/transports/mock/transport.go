package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/transports"
)

// Transport is an in-memory transport for tests and local runs. Frames are
// injected with Push; CloseStream calls are recorded.
type Transport struct {
	mu      sync.Mutex
	recvCh  chan frames.Frame
	closed  bool
	busy    func() bool
	hangups map[string]string
}

func New() *Transport {
	return &Transport{
		recvCh:  make(chan frames.Frame, 256),
		hangups: make(map[string]string),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.recvCh)
	}
	return nil
}

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

// Push injects an inbound frame. It blocks while the buffer is full so tests
// never lose frames.
func (t *Transport) Push(f frames.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.recvCh <- f
}

func (t *Transport) CloseStream(streamID, reason string) error {
	t.mu.Lock()
	t.hangups[streamID] = reason
	t.mu.Unlock()
	return nil
}

// Hangup returns the reason CloseStream was called with for streamID.
func (t *Transport) Hangup(streamID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.hangups[streamID]
	return r, ok
}

func (t *Transport) SetBusyCheck(fn func() bool) {
	t.mu.Lock()
	t.busy = fn
	t.mu.Unlock()
}

// Busy reports what a provider would see when a new call arrives.
func (t *Transport) Busy() bool {
	t.mu.Lock()
	fn := t.busy
	t.mu.Unlock()
	return fn != nil && fn()
}

var (
	_ transports.Transport    = (*Transport)(nil)
	_ transports.StreamCloser = (*Transport)(nil)
	_ transports.BusyAware    = (*Transport)(nil)
)
