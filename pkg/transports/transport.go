package transports

import (
	"context"
	"net/http"

	"github.com/harunnryd/callscribe/pkg/frames"
)

// Transport is the inbound side of a telephony provider: it turns calls into
// call_start, audio and call_end frames. Implementations own their network
// lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan frames.Frame
}

// StreamCloser hangs up a single media stream, e.g. a call that was
// admitted by the provider but rejected by the bridge.
type StreamCloser interface {
	CloseStream(streamID, reason string) error
}

// BusyAware transports consult the check before admitting a new call.
type BusyAware interface {
	SetBusyCheck(fn func() bool)
}

// HandlerMounter allows extra HTTP handlers (metrics) on the transport's server.
type HandlerMounter interface {
	Handle(pattern string, h http.Handler)
}

// OutboundDialer places outbound calls that are routed back to the bridge.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from, url string) (callSID string, err error)
}

// ReadyReporter exposes readiness metadata (webhook URLs) for startup logs.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
