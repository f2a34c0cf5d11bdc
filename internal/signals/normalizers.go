// internal/signals/normalizers.go
package signals

import (
	"fmt"

	"github.com/stockpilot/inventory-agent/internal/domain"
)

// Normalizer maps one source's raw observations onto the common impact scale
// [-1, 1], where negative values suppress demand.
type Normalizer interface {
	Source() string
	Normalize(raw float64) float64
}

// Registry holds the normalization rule for every enabled source tag.
// Built once at startup; an enabled source without a rule is a
// misconfiguration and fails construction, not individual requests.
type Registry struct {
	normalizers map[string]Normalizer
}

func NewRegistry(enabledSources []string) (*Registry, error) {
	known := map[string]Normalizer{
		"weather":  &weatherNormalizer{norm: 15, scale: 25},
		"social":   &socialNormalizer{mean: 0.5, stddev: 0.25, clip: 2},
		"economic": &economicNormalizer{center: 1.0, scale: 0.2},
	}

	registry := &Registry{normalizers: make(map[string]Normalizer, len(enabledSources))}
	for _, source := range enabledSources {
		n, ok := known[source]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no normalization rule", domain.ErrUnknownSource, source)
		}
		registry.normalizers[source] = n
	}
	return registry, nil
}

// Sources returns the registered source tags.
func (r *Registry) Sources() []string {
	sources := make([]string, 0, len(r.normalizers))
	for source := range r.normalizers {
		sources = append(sources, source)
	}
	return sources
}

func (r *Registry) Normalize(source string, raw float64) (float64, error) {
	n, ok := r.normalizers[source]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	return n.Normalize(raw), nil
}

// weatherNormalizer maps temperature deviation from a seasonal norm onto the
// impact scale via a fixed degree span.
type weatherNormalizer struct {
	norm  float64
	scale float64
}

func (w *weatherNormalizer) Source() string { return "weather" }

func (w *weatherNormalizer) Normalize(raw float64) float64 {
	return clamp((raw-w.norm)/w.scale, -1, 1)
}

// socialNormalizer z-scores a trend score against a fixed population mean and
// deviation, clipped before rescaling to [-1, 1].
type socialNormalizer struct {
	mean   float64
	stddev float64
	clip   float64
}

func (s *socialNormalizer) Source() string { return "social" }

func (s *socialNormalizer) Normalize(raw float64) float64 {
	z := (raw - s.mean) / s.stddev
	return clamp(z, -s.clip, s.clip) / s.clip
}

// economicNormalizer centers an index (e.g. retail spending) around its
// neutral value.
type economicNormalizer struct {
	center float64
	scale  float64
}

func (e *economicNormalizer) Source() string { return "economic" }

func (e *economicNormalizer) Normalize(raw float64) float64 {
	return clamp((raw-e.center)/e.scale, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
