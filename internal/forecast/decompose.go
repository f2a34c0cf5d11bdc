// internal/forecast/decompose.go
package forecast

import (
	"fmt"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

// Decomposer breaks a sales series into baseline, trend, and day-of-week
// seasonality. Pure function of its input; identical history and config
// always produce the identical Decomposition.
type Decomposer struct {
	alpha         float64
	trendWindow   int
	seasonalFloor float64
	minPoints     int
}

func NewDecomposer(cfg config.ForecastConfig) *Decomposer {
	return &Decomposer{
		alpha:         cfg.SmoothingAlpha,
		trendWindow:   cfg.TrendWindowDays,
		seasonalFloor: cfg.SeasonalFloor,
		minPoints:     cfg.MinHistoryPoints,
	}
}

// Decompose expects records ordered by date ascending for a single product.
func (d *Decomposer) Decompose(records []domain.SalesRecord) (domain.Decomposition, error) {
	if len(records) < d.minPoints {
		return domain.Decomposition{}, fmt.Errorf(
			"%w: have %d points, need %d", domain.ErrInsufficientHistory, len(records), d.minPoints)
	}

	smoothed := d.smooth(records)
	baseline := smoothed[len(smoothed)-1]

	window := d.trendWindow
	if window > len(smoothed) {
		window = len(smoothed)
	}
	slope := regressSlope(smoothed[len(smoothed)-window:])

	return domain.Decomposition{
		ProductID:       records[0].ProductID,
		Baseline:        baseline,
		TrendSlope:      slope,
		SeasonalFactors: d.seasonalFactors(records, smoothed),
		SampleCount:     len(records),
	}, nil
}

// smooth applies an exponentially weighted moving average over quantities.
func (d *Decomposer) smooth(records []domain.SalesRecord) []float64 {
	smoothed := make([]float64, len(records))
	smoothed[0] = float64(records[0].Quantity)
	for i := 1; i < len(records); i++ {
		smoothed[i] = d.alpha*float64(records[i].Quantity) + (1-d.alpha)*smoothed[i-1]
	}
	return smoothed
}

// seasonalFactors averages the actual-to-baseline ratio per weekday and
// clamps each factor to the configured floor so no multiplier can zero out
// or invert a forecast.
func (d *Decomposer) seasonalFactors(records []domain.SalesRecord, smoothed []float64) map[int]float64 {
	sums := make(map[int]float64, 7)
	counts := make(map[int]int, 7)
	for i, r := range records {
		if smoothed[i] <= 0 {
			continue
		}
		dow := int(r.Date.Weekday())
		sums[dow] += float64(r.Quantity) / smoothed[i]
		counts[dow]++
	}

	factors := make(map[int]float64, 7)
	for dow := 0; dow < 7; dow++ {
		factor := 1.0
		if counts[dow] > 0 {
			factor = sums[dow] / float64(counts[dow])
		}
		if factor < d.seasonalFloor {
			factor = d.seasonalFloor
		}
		factors[dow] = factor
	}
	return factors
}

// regressSlope fits ordinary least squares over index vs value and returns
// the per-day slope.
func regressSlope(series []float64) float64 {
	n := float64(len(series))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// SeasonalitySummary reports the weekend-to-weekday demand ratio, the single
// scalar exposed on forecast responses.
func SeasonalitySummary(factors map[int]float64) float64 {
	weekend := (factors[0] + factors[6]) / 2
	var weekdaySum float64
	for dow := 1; dow <= 5; dow++ {
		weekdaySum += factors[dow]
	}
	weekday := weekdaySum / 5
	if weekday == 0 {
		return 1
	}
	return weekend / weekday
}
