package frames

// Meta keys shared by transports, sessions and observers.
const (
	MetaStreamID      = "stream_id"
	MetaCallSID       = "call_sid"
	MetaTraceID       = "trace_id"
	MetaFromNumber    = "from_number"
	MetaSource        = "source"
	MetaCallEndReason = "call_end_reason"
	MetaEncoding      = "encoding"
	MetaCodec         = "codec"
	MetaFormat        = "format"
)

// StreamIDOf returns the stream a frame belongs to.
func StreamIDOf(f Frame) string {
	if f == nil {
		return ""
	}
	return f.Meta()[MetaStreamID]
}
