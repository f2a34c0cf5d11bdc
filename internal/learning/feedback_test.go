package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/repository/memory"
)

func testLearningConfig() config.LearningConfig {
	return config.LearningConfig{
		Interval:     24 * time.Hour,
		LearningRate: 0.05,
		MinSamples:   5,
		WindowSize:   50,
	}
}

func seedAccuracy(t *testing.T, store *memory.Store, productID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		// Weather contribution tracks over-forecasting; trend the opposite.
		weatherC := float64(i)
		err := store.AppendAccuracy(ctx, domain.AccuracyRecord{
			ProductID:      productID,
			ForecastID:     "f",
			RealizedDemand: 100,
			SignedError:    weatherC * 2,
			AbsPctError:    0.1,
			Contributions: map[string]float64{
				"weather":               weatherC,
				domain.InputTrend:       -weatherC,
				domain.InputSeasonality: 0,
			},
			RecordedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func TestUpdateProductNoOpBelowMinSamples(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}))
	seedAccuracy(t, store, "P1", 3)

	loop := NewFeedbackLoop(store, testLearningConfig())
	changed, err := loop.UpdateProduct(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, changed)

	state, err := store.WeightState(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.Version)
}

func TestUpdateProductPublishesNewVersion(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}))
	seedAccuracy(t, store, "P1", 10)

	before, err := store.WeightState(ctx, "P1")
	require.NoError(t, err)

	loop := NewFeedbackLoop(store, testLearningConfig())
	changed, err := loop.UpdateProduct(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, changed)

	after, err := store.WeightState(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, before.Version+1, after.Version)

	// Weather correlated with over-forecasting, so its weight steps down;
	// trend correlated the other way and steps up.
	assert.Less(t, after.Weights["weather"], before.Weights["weather"])
	assert.Greater(t, after.Weights[domain.InputTrend], before.Weights[domain.InputTrend])
}

func TestWeightsStayBoundedAcrossManyCycles(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}))
	seedAccuracy(t, store, "P1", 20)

	loop := NewFeedbackLoop(store, testLearningConfig())
	for cycle := 0; cycle < 100; cycle++ {
		_, err := loop.UpdateProduct(ctx, "P1")
		require.NoError(t, err)
	}

	state, err := store.WeightState(ctx, "P1")
	require.NoError(t, err)

	var externalSum float64
	for input, w := range state.Weights {
		assert.GreaterOrEqual(t, w, 0.0, "input %s", input)
		assert.LessOrEqual(t, w, 1.0, "input %s", input)
		if input != domain.InputTrend && input != domain.InputSeasonality {
			externalSum += w
		}
	}
	assert.LessOrEqual(t, externalSum, 1.0+1e-9)
	assert.Equal(t, int64(100), state.Version)
}

func TestRunOnceSkipsProductsWithoutHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{ID: "P1", LeadTimeDays: 3, ServiceLevel: 0.9}))
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{ID: "P2", LeadTimeDays: 3, ServiceLevel: 0.9}))
	seedAccuracy(t, store, "P1", 10)

	loop := NewFeedbackLoop(store, testLearningConfig())
	require.NoError(t, loop.RunOnce(ctx))

	updated, err := store.WeightState(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	untouched, err := store.WeightState(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), untouched.Version)
}

func TestErrorCorrelationZeroWithoutVariance(t *testing.T) {
	records := []domain.AccuracyRecord{
		{SignedError: 5, Contributions: map[string]float64{"weather": 1}},
		{SignedError: 5, Contributions: map[string]float64{"weather": 1}},
		{SignedError: 5, Contributions: map[string]float64{"weather": 1}},
	}
	assert.Equal(t, 0.0, errorCorrelation(records, "weather"))
}
