// Package transcript assembles streaming recognizer fragments into finalized utterances.
package transcript

import "strings"

// Aggregator buffers fragments until a boundary commits them into an utterance.
//
// An Aggregator is not safe for concurrent use. It is owned by a single
// session loop which applies events one at a time.
type Aggregator struct {
	listener Listener
	pending  []Fragment
	history  []string
}

// NewAggregator creates an aggregator that reports to listener. A nil listener discards signals.
func NewAggregator(listener Listener) *Aggregator {
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &Aggregator{listener: listener}
}

// Apply dispatches a recognizer event to OnFragment or OnBoundary.
func (a *Aggregator) Apply(ev Event) {
	switch {
	case ev.Fragment != nil:
		a.OnFragment(*ev.Fragment)
	case ev.Boundary != nil:
		a.OnBoundary(*ev.Boundary)
	}
}

// OnFragment queues a speech-bearing fragment and emits its text as the current draft.
func (a *Aggregator) OnFragment(f Fragment) {
	if !f.HasSpeech() {
		return
	}
	if len(a.pending) == 0 {
		a.listener.OnSpeechStarted()
	}
	a.pending = append(a.pending, f)
	a.listener.OnDraft(f.Text)
}

// OnBoundary consumes every queued fragment that started at or before
// b.LastWordEnd and emits the final text they carry, if any.
// Interim text is dropped. Each final fragment is suffixed with one space.
func (a *Aggregator) OnBoundary(b Boundary) {
	var sb strings.Builder
	n := 0
	for n < len(a.pending) {
		f := a.pending[n]
		if f.Start > b.LastWordEnd {
			break
		}
		if f.IsFinal {
			sb.WriteString(f.Text)
			sb.WriteByte(' ')
		}
		n++
	}
	a.pending = append(a.pending[:0], a.pending[n:]...)

	text := sb.String()
	if text == "" {
		return
	}
	a.history = append(a.history, text)
	a.listener.OnFinal(text, a.History())
}

// Pending returns the number of queued fragments.
func (a *Aggregator) Pending() int { return len(a.pending) }

// History returns a copy of the finalized utterances in emission order.
func (a *Aggregator) History() []string {
	out := make([]string, len(a.history))
	copy(out, a.history)
	return out
}

// Reset drops queued fragments and the finalized history.
func (a *Aggregator) Reset() {
	a.pending = nil
	a.history = nil
}
