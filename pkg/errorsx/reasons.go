package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSessionActive ReasonCode = "session_already_active"
	ReasonSessionStart  ReasonCode = "session_start"

	ReasonSTTConnect ReasonCode = "stt_connect"
	ReasonSTTSend    ReasonCode = "stt_send"

	ReasonPublish ReasonCode = "publish"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
)
