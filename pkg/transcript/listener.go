package transcript

// Listener observes aggregator signals. Calls are synchronous and ordered.
type Listener interface {
	OnSpeechStarted()
	OnDraft(text string)
	OnFinal(text string, history []string)
}

// ListenerFuncs adapts optional callbacks to a Listener.
type ListenerFuncs struct {
	SpeechStarted func()
	Draft         func(text string)
	Final         func(text string, history []string)
}

func (l ListenerFuncs) OnSpeechStarted() {
	if l.SpeechStarted != nil {
		l.SpeechStarted()
	}
}

func (l ListenerFuncs) OnDraft(text string) {
	if l.Draft != nil {
		l.Draft(text)
	}
}

func (l ListenerFuncs) OnFinal(text string, history []string) {
	if l.Final != nil {
		l.Final(text, history)
	}
}

// MultiListener fans signals out to every listener in order.
type MultiListener []Listener

func (m MultiListener) OnSpeechStarted() {
	for _, l := range m {
		if l != nil {
			l.OnSpeechStarted()
		}
	}
}

func (m MultiListener) OnDraft(text string) {
	for _, l := range m {
		if l != nil {
			l.OnDraft(text)
		}
	}
}

func (m MultiListener) OnFinal(text string, history []string) {
	for _, l := range m {
		if l != nil {
			l.OnFinal(text, history)
		}
	}
}

var (
	_ Listener = ListenerFuncs{}
	_ Listener = MultiListener(nil)
)
