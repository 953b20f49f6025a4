// Package tts synthesizes narration audio with word-level timing from text.
// Providers are registered by name; callers pick one per request.
package tts

import (
	"context"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// SpeechOptions tune a single synthesis request.
type SpeechOptions struct {
	// Voice overrides the provider's default voice id.
	Voice string
	// Speed is a playback-rate multiplier. Zero means provider default.
	Speed float64
	// SkipNormalization sends the source text to the provider verbatim
	// instead of collapsing whitespace first.
	SkipNormalization bool
	// MaxDurationSeconds caps the synthesized audio length by truncating the
	// input text at a word boundary. Zero means no cap.
	MaxDurationSeconds float64
}

// SpeechRequest is one text-to-speech job.
type SpeechRequest struct {
	Text    string
	Options SpeechOptions
}

// SpeechResult carries the synthesized audio and the provider's word timing.
type SpeechResult struct {
	Audio     []byte
	Alignment domain.WordAlignment
}

// Synthesizer converts text to narrated audio with word timestamps.
type Synthesizer interface {
	// Name returns the provider's registry key, e.g. "cartesia".
	Name() string
	// Synthesize runs one job. Upstream failures are provider errors so the
	// pipeline can decide whether to retry.
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// Registry resolves provider names to synthesizers.
type Registry struct {
	providers map[string]Synthesizer
}

// NewRegistry builds a registry from the given synthesizers.
func NewRegistry(providers ...Synthesizer) *Registry {
	r := &Registry{providers: make(map[string]Synthesizer, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Resolve returns the synthesizer registered under name. Unknown names are a
// caller error, not a provider failure.
func (r *Registry) Resolve(name string) (Synthesizer, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Validationf("unknown tts provider %q", name).
			WithDetails(map[string]any{"known": r.Names()})
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
