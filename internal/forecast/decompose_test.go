package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		LookbackDays:     90,
		MinHistoryPoints: 14,
		SmoothingAlpha:   0.3,
		TrendWindowDays:  28,
		SeasonalFloor:    0.1,
		ConfCompleteness: 0.4,
		ConfAccuracy:     0.4,
		ConfStability:    0.2,
	}
}

func flatHistory(productID string, days, qty int) []domain.SalesRecord {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.SalesRecord, 0, days)
	for i := 0; i < days; i++ {
		records = append(records, domain.SalesRecord{
			ProductID: productID,
			Date:      start.AddDate(0, 0, i),
			Quantity:  qty,
		})
	}
	return records
}

func TestDecomposeFlatSeries(t *testing.T) {
	d := NewDecomposer(testForecastConfig())

	dec, err := d.Decompose(flatHistory("OLJCESPC7Z", 90, 10))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, dec.Baseline, 0.01)
	assert.InDelta(t, 0.0, dec.TrendSlope, 0.01)
	assert.Equal(t, "stable", dec.TrendDirection())
	for dow := 0; dow < 7; dow++ {
		assert.InDelta(t, 1.0, dec.SeasonalFactors[dow], 0.05, "weekday %d", dow)
	}
}

func TestDecomposeDeterministic(t *testing.T) {
	d := NewDecomposer(testForecastConfig())
	history := flatHistory("P1", 60, 25)
	history[10].Quantity = 80
	history[40].Quantity = 3

	first, err := d.Decompose(history)
	require.NoError(t, err)
	second, err := d.Decompose(history)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecomposeTrendingSeries(t *testing.T) {
	d := NewDecomposer(testForecastConfig())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.SalesRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, domain.SalesRecord{
			ProductID: "P1",
			Date:      start.AddDate(0, 0, i),
			Quantity:  10 + i,
		})
	}

	dec, err := d.Decompose(records)
	require.NoError(t, err)
	assert.Positive(t, dec.TrendSlope)
	assert.Equal(t, "increasing", dec.TrendDirection())
}

func TestDecomposeSeasonalFloor(t *testing.T) {
	cfg := testForecastConfig()
	d := NewDecomposer(cfg)

	// Zero every Sunday so the raw ratio would hit zero.
	history := flatHistory("P1", 56, 20)
	for i := range history {
		if history[i].Date.Weekday() == time.Sunday {
			history[i].Quantity = 0
		}
	}

	dec, err := d.Decompose(history)
	require.NoError(t, err)
	for dow, factor := range dec.SeasonalFactors {
		assert.GreaterOrEqual(t, factor, cfg.SeasonalFloor, "weekday %d", dow)
	}
}

func TestDecomposeInsufficientHistory(t *testing.T) {
	d := NewDecomposer(testForecastConfig())

	_, err := d.Decompose(flatHistory("P1", 13, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}
