package twilio

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/callscribe/pkg/frames"
)

// Media Stream message types, see
// https://www.twilio.com/docs/voice/media-streams/websocket-messages
type StreamStart struct {
	CallSID          string            `json:"callSid"`
	StreamID         string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	From             string            `json:"from"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

type StreamMedia struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

type StreamStop struct {
	CallSID string `json:"callSid"`
	Reason  string `json:"reason"`
}

type StreamEvent struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid,omitempty"`
	Start     *StreamStart `json:"start,omitempty"`
	Media     *StreamMedia `json:"media,omitempty"`
	Stop      *StreamStop  `json:"stop,omitempty"`
}

// ServeHTTP handles the Media Stream websocket of one call.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket_upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()

	var streamID string
	var cur *stream
	rate, channels := 8000, 1
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var evt StreamEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.logger.Debug("stream_message_invalid", "error", err.Error())
			continue
		}
		switch evt.Event {
		case "connected":
		case "start":
			if evt.Start == nil || evt.Start.StreamID == "" {
				continue
			}
			streamID = evt.Start.StreamID
			if evt.Start.MediaFormat.SampleRate > 0 {
				rate = evt.Start.MediaFormat.SampleRate
			}
			if evt.Start.MediaFormat.Channels > 0 {
				channels = evt.Start.MediaFormat.Channels
			}
			s := &stream{
				conn:    conn,
				callSID: evt.Start.CallSID,
				traceID: uuid.NewString(),
				from:    evt.Start.From,
			}
			cur = s
			if prev := t.attach(streamID, s); prev != nil {
				_ = prev.close()
			}
			t.logger.Info("stream_started", "stream_id", streamID, "call_sid", s.callSID, "trace_id", s.traceID)
			meta := t.metaForStream(streamID)
			meta[frames.MetaEncoding] = "mulaw"
			t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemCallStart, meta))
		case "media":
			if evt.Media == nil || streamID == "" {
				continue
			}
			if evt.Media.Track != "" && evt.Media.Track != "inbound" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				continue
			}
			meta := map[string]string{
				frames.MetaCallSID:  cur.callSID,
				frames.MetaTraceID:  cur.traceID,
				frames.MetaEncoding: "mulaw",
				frames.MetaCodec:    "ulaw",
				frames.MetaFormat:   "ulaw_8000_1ch_8bit",
			}
			t.emit(frames.NewAudioFrame(streamID, t.pts.Next(streamID), payload, rate, channels, meta))
		case "stop":
			reason := "completed"
			if evt.Stop != nil {
				if r := normalizeCallEndReason(evt.Stop.Reason); r != "" {
					reason = r
				}
			}
			t.endStream(streamID, reason)
			return
		}
	}
	t.endStream(streamID, "transport_closed")
}

// endStream emits call_end once per stream and forgets it.
func (t *Transport) endStream(streamID, reason string) {
	if streamID == "" {
		return
	}
	meta := t.metaForStream(streamID)
	if _, ok := t.detach(streamID); !ok {
		return
	}
	t.pts.Forget(streamID)
	meta[frames.MetaCallEndReason] = normalizeCallEndReason(reason)
	t.logger.Info("stream_ended", "stream_id", streamID, "reason", meta[frames.MetaCallEndReason])
	t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemCallEnd, meta))
}
