package transcript

// Fragment is one unit of recognized text covering a short span of audio.
type Fragment struct {
	// Start is the offset in seconds where the recognized segment began.
	Start float64
	Text  string
	// IsFinal is false while the recognizer may still revise Text.
	IsFinal bool
	// Words is the number of recognized words in the fragment.
	Words int
}

// HasSpeech reports whether the fragment carries at least one recognized word.
func (f Fragment) HasSpeech() bool { return f.Words > 0 }

// Boundary marks detected silence after the last confirmed word.
type Boundary struct {
	// LastWordEnd shares the timeline of Fragment.Start.
	LastWordEnd float64
}

// Event is a single recognizer result. Exactly one of Fragment or Boundary is set.
type Event struct {
	Fragment *Fragment
	Boundary *Boundary
}

// FragmentEvent wraps a fragment as an Event.
func FragmentEvent(f Fragment) Event { return Event{Fragment: &f} }

// BoundaryEvent wraps a boundary as an Event.
func BoundaryEvent(b Boundary) Event { return Event{Boundary: &b} }
