package scribe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
)

// STTFactoryBuilder validates provider settings once and returns the factory
// sessions use for every connection attempt.
type STTFactoryBuilder func(cfg Config) (stt.Factory, error)

type ProviderRegistry struct {
	stt map[string]STTFactoryBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{stt: make(map[string]STTFactoryBuilder)}
}

func (r *ProviderRegistry) RegisterSTT(name string, builder STTFactoryBuilder) {
	r.stt[normalizeProvider(name)] = builder
}

func (r *ProviderRegistry) BuildSTTFactory(provider string, cfg Config) (stt.Factory, error) {
	fn := r.stt[normalizeProvider(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg)
}

// STTProviders lists registered provider names.
func (r *ProviderRegistry) STTProviders() []string {
	out := make([]string, 0, len(r.stt))
	for name := range r.stt {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
