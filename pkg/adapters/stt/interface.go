package stt

import (
	"context"

	"github.com/harunnryd/callscribe/pkg/frames"
	"github.com/harunnryd/callscribe/pkg/transcript"
)

// StreamingSTT defines the contract for any STT vendor implementation.
type StreamingSTT interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start connects to the recognizer. It blocks until the connection is usable.
	Start(ctx context.Context) error
	// Close shuts down the connection and closes the Results channel.
	Close() error
	// SendAudio forwards raw call audio to the recognizer.
	SendAudio(frame frames.AudioFrame) error
	// Results delivers fragments and utterance boundaries in recognizer order.
	// The channel is closed once the connection is gone.
	Results() <-chan transcript.Event
}

// Factory builds a fresh adapter for one call.
type Factory func(callSID, streamID, traceID string) StreamingSTT
