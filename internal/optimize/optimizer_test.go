package optimize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

func testOptimizerConfig() config.OptimizerConfig {
	return config.OptimizerConfig{
		SigmaScale:  0.5,
		SigmaFloor:  0.5,
		BufferRatio: 1.0,
	}
}

func testForecast(demand float64, horizon int, confidence float64) domain.ForecastResult {
	return domain.ForecastResult{
		ID:              "f-1",
		ProductID:       "OLJCESPC7Z",
		HorizonDays:     horizon,
		PredictedDemand: demand,
		ConfidenceScore: confidence,
	}
}

func TestRecommendInvalidStock(t *testing.T) {
	o := NewOptimizer(testOptimizerConfig())
	product := domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}

	_, err := o.Recommend(product, testForecast(70, 7, 0.8), -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidStock))
}

func TestRecommendFlatDemandExample(t *testing.T) {
	o := NewOptimizer(testOptimizerConfig())
	product := domain.Product{ID: "OLJCESPC7Z", LeadTimeDays: 3, ServiceLevel: 0.9}

	rec, err := o.Recommend(product, testForecast(70, 7, 0.8), 50)
	require.NoError(t, err)

	assert.Greater(t, rec.ReorderPoint, 0)
	assert.Greater(t, rec.RecommendedStock, rec.ReorderPoint)
	assert.Equal(t, 50, rec.CurrentStock)
	assert.Equal(t, "f-1", rec.ForecastID)

	// Lead-time demand alone is 30 units; the reorder point must cover it.
	assert.GreaterOrEqual(t, rec.ReorderPoint, 30)
}

func TestRecommendNeverBelowReorderPoint(t *testing.T) {
	o := NewOptimizer(testOptimizerConfig())

	for _, serviceLevel := range []float64{0.5, 0.8, 0.9, 0.95, 0.99} {
		for _, confidence := range []float64{0.1, 0.5, 0.9} {
			for _, leadTime := range []int{1, 3, 14} {
				product := domain.Product{ID: "P1", LeadTimeDays: leadTime, ServiceLevel: serviceLevel}
				rec, err := o.Recommend(product, testForecast(70, 7, confidence), 0)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, rec.RecommendedStock, rec.ReorderPoint,
					"service=%v confidence=%v lead=%d", serviceLevel, confidence, leadTime)
			}
		}
	}
}

func TestLowerConfidenceMeansMoreSafetyStock(t *testing.T) {
	o := NewOptimizer(testOptimizerConfig())
	product := domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}

	confident, err := o.Recommend(product, testForecast(70, 7, 0.9), 0)
	require.NoError(t, err)
	uncertain, err := o.Recommend(product, testForecast(70, 7, 0.2), 0)
	require.NoError(t, err)

	assert.Greater(t, uncertain.ReorderPoint, confident.ReorderPoint)
}

func TestHigherServiceLevelMeansMoreSafetyStock(t *testing.T) {
	o := NewOptimizer(testOptimizerConfig())

	low, err := o.Recommend(domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.8}, testForecast(70, 7, 0.5), 0)
	require.NoError(t, err)
	high, err := o.Recommend(domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.99}, testForecast(70, 7, 0.5), 0)
	require.NoError(t, err)

	assert.Greater(t, high.ReorderPoint, low.ReorderPoint)
}

func TestServiceLevelZ(t *testing.T) {
	// z(0.9) is about 1.2816 for the standard normal.
	assert.InDelta(t, 1.2816, serviceLevelZ(0.9), 0.01)
	assert.InDelta(t, 1.6449, serviceLevelZ(0.95), 0.01)

	// Extreme levels are clamped instead of diverging.
	assert.False(t, serviceLevelZ(1.0) > 4)
	assert.GreaterOrEqual(t, serviceLevelZ(0.0), 0.0)
}
