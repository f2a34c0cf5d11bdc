// internal/signals/processor.go
package signals

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/repository"
)

// Impact is one source's normalized contribution for one day. Missing means
// no observation resolved for that cell; the forecast treats it as zero
// impact and lowers confidence instead of failing.
type Impact struct {
	Score   float64
	Missing bool
}

// ImpactGrid maps day key (see DateKey) -> source -> impact.
type ImpactGrid map[string]map[string]Impact

// Completeness is the fraction of non-missing cells, feeding the confidence
// score. A grid with no sources registered counts as complete.
func (g ImpactGrid) Completeness() float64 {
	var total, present int
	for _, bySource := range g {
		for _, impact := range bySource {
			total++
			if !impact.Missing {
				present++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(present) / float64(total)
}

// Processor resolves stored observations (and, for weather, a live
// collaborator fetch) into a normalized per-date impact grid.
type Processor struct {
	registry *Registry
	store    repository.SignalStore
	weather  *WeatherFetcher
}

func NewProcessor(registry *Registry, store repository.SignalStore, weather *WeatherFetcher) *Processor {
	return &Processor{
		registry: registry,
		store:    store,
		weather:  weather,
	}
}

// Impacts builds the grid for every day in [from, to]. Stored observations
// win; for weather days with no stored observation a live fetch fills the
// gap when the collaborator is configured and the context still has budget.
// Every unresolved cell degrades to missing.
func (p *Processor) Impacts(ctx context.Context, productID string, from, to time.Time) (ImpactGrid, error) {
	observed, err := p.store.SignalsInRange(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}

	rawByDay := make(map[string]map[string]float64)
	for _, sig := range observed {
		key := DateKey(sig.Date)
		if rawByDay[key] == nil {
			rawByDay[key] = make(map[string]float64)
		}
		rawByDay[key][sig.Source] = sig.RawValue
	}

	liveWeather := p.fetchWeather(ctx, rawByDay, from, to)

	grid := make(ImpactGrid)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := DateKey(day)
		grid[key] = make(map[string]Impact, len(p.registry.normalizers))

		for _, source := range p.registry.Sources() {
			raw, ok := rawByDay[key][source]
			if !ok && source == "weather" {
				raw, ok = liveWeather[key]
			}
			if !ok {
				grid[key][source] = Impact{Missing: true}
				continue
			}

			score, err := p.registry.Normalize(source, raw)
			if err != nil {
				// Registry membership is validated at startup, so this
				// only fires on a registry/config mismatch.
				return nil, err
			}
			grid[key][source] = Impact{Score: score}
		}
	}
	return grid, nil
}

// fetchWeather makes at most one bounded collaborator call per grid. Any
// failure or an already-expired context leaves the gaps missing.
func (p *Processor) fetchWeather(ctx context.Context, rawByDay map[string]map[string]float64, from, to time.Time) map[string]float64 {
	if p.weather == nil || !p.weather.Enabled() {
		return nil
	}
	if _, registered := p.registry.normalizers["weather"]; !registered {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	needed := false
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if _, ok := rawByDay[DateKey(day)]["weather"]; !ok {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	days := int(to.Sub(from).Hours()/24) + 1
	temps, err := p.weather.FetchDaily(ctx, "general", days)
	if err != nil {
		log.Warn().Err(err).Msg("weather collaborator unavailable, degrading to missing")
		return nil
	}
	return temps
}
