package twilio

import "strings"

func streamTwiML(wsURL, greeting string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Response>`)
	if g := strings.TrimSpace(greeting); g != "" {
		b.WriteString(`<Say>` + xmlEscape(g) + `</Say>`)
	}
	b.WriteString(`<Connect><Stream url="` + xmlEscape(wsURL) + `"/></Connect></Response>`)
	return b.String()
}

func rejectTwiML(reason string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Reject reason="` + xmlEscape(reason) + `"/></Response>`
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}

// normalizeCallEndReason maps Twilio call statuses and stream stop reasons
// onto the reasons the bridge reports. Non-terminal statuses map to "".
func normalizeCallEndReason(raw string) string {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return ""
	}
	switch r {
	case "queued", "ringing", "in-progress", "inprogress", "initiated":
		return ""
	case "completed", "call_ended", "call-ended", "completed_by_user", "hangup":
		return "completed"
	case "busy":
		return "busy"
	case "no_answer", "noanswer", "no-answer":
		return "no_answer"
	case "transport_closed":
		return "transport_closed"
	case "failed", "error", "canceled", "cancelled":
		return "failed"
	default:
		return "unknown"
	}
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}
