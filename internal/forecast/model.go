// internal/forecast/model.go
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/signals"
)

// Aggregation selects how per-day forecasts roll up into the point forecast.
type Aggregation string

const (
	AggregateSum  Aggregation = "sum"
	AggregateMean Aggregation = "mean"
)

// Input is one fully resolved forecast request: a decomposition, the impact
// grid covering the horizon, and the weight snapshot in force. The model
// reads all of it and mutates none of it.
type Input struct {
	Decomposition domain.Decomposition
	Impacts       signals.ImpactGrid
	Weights       domain.WeightState
	Start         time.Time
	HorizonDays   int
	Accuracy      []domain.AccuracyRecord
	HistoryStdDev float64
	Aggregation   Aggregation
}

// Model fuses a decomposition with normalized external impacts under the
// product's weight snapshot. Deterministic given an identical Input.
type Model struct {
	cfg config.ForecastConfig
}

func NewModel(cfg config.ForecastConfig) *Model {
	return &Model{cfg: cfg}
}

// Forecast computes, for each future date d in the horizon,
//
//	daily(d) = baseline * trendFactor(d) * seasonalFactor(d) * (1 + Σ w[s]*impact[s,d])
//
// clamped to >= 0, where the trend and seasonality weights blend their
// factor toward neutral: effective = 1 + w*(factor-1).
func (m *Model) Forecast(in Input) (domain.ForecastResult, error) {
	if in.HorizonDays <= 0 {
		return domain.ForecastResult{}, fmt.Errorf("%w: got %d", domain.ErrInvalidHorizon, in.HorizonDays)
	}
	if in.Aggregation == "" {
		in.Aggregation = AggregateSum
	}

	dec := in.Decomposition
	wTrend := in.Weights.Weights[domain.InputTrend]
	wSeason := in.Weights.Weights[domain.InputSeasonality]

	var total float64
	contributions := map[string]float64{
		domain.InputTrend:       0,
		domain.InputSeasonality: 0,
	}
	missing := map[string]bool{}

	for offset := 0; offset < in.HorizonDays; offset++ {
		date := in.Start.AddDate(0, 0, offset)

		trendFactor := 1.0
		if dec.Baseline > 0 {
			trendFactor = 1 + dec.TrendSlope*float64(offset+1)/dec.Baseline
		}
		effTrend := 1 + wTrend*(trendFactor-1)

		seasonal := dec.SeasonalFactors[int(date.Weekday())]
		if seasonal == 0 {
			seasonal = 1
		}
		effSeason := 1 + wSeason*(seasonal-1)

		signalTerm := 1.0
		base := dec.Baseline * effTrend * effSeason
		for source, impact := range in.Impacts[signals.DateKey(date)] {
			if impact.Missing {
				missing[source] = true
				continue
			}
			w := in.Weights.Weights[source]
			signalTerm += w * impact.Score
			contributions[source] += base * w * impact.Score
		}

		daily := dec.Baseline * effTrend * effSeason * signalTerm
		if daily < 0 {
			daily = 0
		}
		total += daily

		contributions[domain.InputTrend] += dec.Baseline * (effTrend - 1)
		contributions[domain.InputSeasonality] += dec.Baseline * effTrend * (effSeason - 1)
	}

	demand := total
	if in.Aggregation == AggregateMean {
		demand = total / float64(in.HorizonDays)
	}

	confidence := m.confidence(in)
	sigma := in.HistoryStdDev * math.Sqrt(float64(in.HorizonDays))
	lower := demand - 1.96*sigma
	if lower < 0 {
		lower = 0
	}

	externalSignals := make(map[string]float64)
	for source, c := range contributions {
		if source != domain.InputTrend && source != domain.InputSeasonality {
			externalSignals[source] = c
		}
	}

	result := domain.ForecastResult{
		ID:                 fmt.Sprintf("%s-%dd-%d", dec.ProductID, in.HorizonDays, in.Start.Unix()),
		ProductID:          dec.ProductID,
		HorizonDays:        in.HorizonDays,
		PredictedDemand:    demand,
		ConfidenceScore:    confidence,
		ConfidenceInterval: [2]float64{lower, demand + 1.96*sigma},
		TrendDirection:     dec.TrendDirection(),
		SeasonalityFactor:  SeasonalitySummary(dec.SeasonalFactors),
		Factors:            rankFactors(contributions, missing),
		ExternalSignals:    externalSignals,
		WeightVersion:      in.Weights.Version,
		GeneratedAt:        in.Start,
	}
	return result, nil
}

// confidence blends input completeness, recency-weighted historical accuracy,
// and weight stability. Each term lives in [0,1]; the blend weights come
// from configuration so the contract (ranges, monotonicity) is fixed while
// the constants stay tunable.
func (m *Model) confidence(in Input) float64 {
	completeness := in.Impacts.Completeness()
	accuracy := recencyWeightedAccuracy(in.Accuracy)
	stability := weightStability(in.Weights)

	score := m.cfg.ConfCompleteness*completeness +
		m.cfg.ConfAccuracy*accuracy +
		m.cfg.ConfStability*stability
	return clamp01(score / (m.cfg.ConfCompleteness + m.cfg.ConfAccuracy + m.cfg.ConfStability))
}

// recencyWeightedAccuracy turns absolute-percentage errors into a [0,1]
// score with geometric decay, newest record first. Without history the
// product sits at a neutral 0.5.
func recencyWeightedAccuracy(records []domain.AccuracyRecord) float64 {
	if len(records) == 0 {
		return 0.5
	}

	const decay = 0.9
	var weighted, norm float64
	w := 1.0
	for _, r := range records {
		ape := r.AbsPctError
		if ape > 1 {
			ape = 1
		}
		weighted += w * (1 - ape)
		norm += w
		w *= decay
	}
	return weighted / norm
}

// weightStability penalizes dispersed weight snapshots: the wider the spread
// of values, the less settled the learning, the lower the confidence.
func weightStability(state domain.WeightState) float64 {
	if len(state.Weights) == 0 {
		return 1
	}

	var sum float64
	for _, v := range state.Weights {
		sum += v
	}
	mean := sum / float64(len(state.Weights))

	var variance float64
	for _, v := range state.Weights {
		variance += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(variance / float64(len(state.Weights)))

	// 0.5 is the worst possible stddev for values confined to [0,1].
	return 1 - clamp01(stddev/0.5)
}

func rankFactors(contributions map[string]float64, missing map[string]bool) []domain.FactorContribution {
	factors := make([]domain.FactorContribution, 0, len(contributions)+len(missing))
	// A source that resolved on only part of the horizon keeps its
	// contribution but is still marked missing.
	for signal, c := range contributions {
		factors = append(factors, domain.FactorContribution{Signal: signal, Contribution: c, Missing: missing[signal]})
	}
	for source := range missing {
		if _, present := contributions[source]; !present {
			factors = append(factors, domain.FactorContribution{Signal: source, Missing: true})
		}
	}
	sort.Slice(factors, func(i, j int) bool {
		ai, aj := math.Abs(factors[i].Contribution), math.Abs(factors[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return factors[i].Signal < factors[j].Signal
	})
	return factors
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
