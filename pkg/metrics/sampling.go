package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards every Nth event whose name is in Names and all
// other events unchanged. Used to thin out per-frame audio events.
type SamplingObserver struct {
	inner       Observer
	names       map[string]struct{}
	sampleEvery uint64
	disabled    bool
	counter     atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64, names ...string) *SamplingObserver {
	rate = math.Max(0, math.Min(1, rate))
	s := &SamplingObserver{inner: inner, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	switch {
	case rate == 0:
		s.disabled = true
	case rate == 1:
		s.sampleEvery = 1
	default:
		s.sampleEvery = uint64(math.Round(1.0 / rate))
		if s.sampleEvery == 0 {
			s.sampleEvery = 1
		}
	}
	return s
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if _, sampled := s.names[ev.Name]; !sampled {
		s.inner.RecordEvent(ev)
		return
	}
	if s.disabled {
		return
	}
	if s.sampleEvery <= 1 || s.counter.Add(1)%s.sampleEvery == 0 {
		s.inner.RecordEvent(ev)
	}
}
