package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/inventory-agent/internal/cache"
	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/forecast"
	"github.com/stockpilot/inventory-agent/internal/insights"
	"github.com/stockpilot/inventory-agent/internal/learning"
	"github.com/stockpilot/inventory-agent/internal/optimize"
	"github.com/stockpilot/inventory-agent/internal/repository/memory"
	"github.com/stockpilot/inventory-agent/internal/signals"
)

func testConfig() *config.Config {
	return &config.Config{
		Forecast: config.ForecastConfig{
			LookbackDays:     90,
			MinHistoryPoints: 14,
			SmoothingAlpha:   0.3,
			TrendWindowDays:  28,
			SeasonalFloor:    0.1,
			ConfCompleteness: 0.4,
			ConfAccuracy:     0.4,
			ConfStability:    0.2,
		},
		Optimizer: config.OptimizerConfig{
			SigmaScale:  0.5,
			SigmaFloor:  0.5,
			BufferRatio: 1.0,
		},
		Learning: config.LearningConfig{
			Interval:     24 * time.Hour,
			LearningRate: 0.05,
			MinSamples:   5,
			WindowSize:   50,
		},
	}
}

// newTestService builds the full pipeline over an in-memory store. An empty
// source list means no external feeds are expected, so completeness is full.
func newTestService(t *testing.T, store *memory.Store, sources []string) *AgentService {
	t.Helper()
	cfg := testConfig()

	registry, err := signals.NewRegistry(sources)
	require.NoError(t, err)

	loop := learning.NewFeedbackLoop(store, cfg.Learning)
	return NewAgentService(
		store,
		forecast.NewDecomposer(cfg.Forecast),
		signals.NewProcessor(registry, store, nil),
		forecast.NewModel(cfg.Forecast),
		optimize.NewOptimizer(cfg.Optimizer),
		loop,
		insights.NewExplainer(nil, 10),
		cache.NewNoopForecastCache(),
		cfg.Forecast,
	)
}

func seedFlatProduct(t *testing.T, store *memory.Store, productID string, days, qty int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{
		ID: productID, Category: "accessories", LeadTimeDays: 3, ServiceLevel: 0.9,
	}))

	now := time.Now().UTC().Truncate(24 * time.Hour)
	records := make([]domain.SalesRecord, 0, days)
	for i := 0; i < days; i++ {
		records = append(records, domain.SalesRecord{
			ProductID: productID,
			Date:      now.AddDate(0, 0, -(days - i)),
			Quantity:  qty,
		})
	}
	require.NoError(t, store.AppendSales(ctx, records...))
}

func TestForecastFlatProductEndToEnd(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	result, err := svc.Forecast(context.Background(), "OLJCESPC7Z", 7)
	require.NoError(t, err)

	assert.InDelta(t, 70.0, result.PredictedDemand, 3.0)
	assert.Equal(t, 7, result.HorizonDays)
	// With no external sources expected, completeness is full and
	// confidence should sit comfortably above the neutral floor.
	assert.Greater(t, result.ConfidenceScore, 0.5)
}

func TestForecastUnknownProduct(t *testing.T) {
	svc := newTestService(t, memory.NewStore(), nil)

	_, err := svc.Forecast(context.Background(), "NOPE", 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownProduct))
}

func TestForecastInsufficientHistory(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "P1", 5, 10)
	svc := newTestService(t, store, nil)

	_, err := svc.Forecast(context.Background(), "P1", 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}

func TestRecommendEndToEnd(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	items := svc.Recommend(context.Background(), []ProductStock{
		{ProductID: "OLJCESPC7Z", CurrentStock: 50},
	})
	require.Len(t, items, 1)
	require.Empty(t, items[0].Error)

	rec := items[0].Recommendation
	require.NotNil(t, rec)
	assert.Greater(t, rec.ReorderPoint, 0)
	assert.Greater(t, rec.RecommendedStock, rec.ReorderPoint)
	assert.NotEmpty(t, rec.Reasoning)
	assert.Equal(t, 50, rec.CurrentStock)
}

func TestRecommendUnknownProductIsPerItemError(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	items := svc.Recommend(context.Background(), []ProductStock{
		{ProductID: "OLJCESPC7Z", CurrentStock: 50},
		{ProductID: "MISSING", CurrentStock: 10},
	})
	require.Len(t, items, 2)

	assert.Empty(t, items[0].Error)
	require.NotNil(t, items[0].Recommendation)

	assert.Nil(t, items[1].Recommendation)
	assert.NotEmpty(t, items[1].Error)
	assert.Equal(t, "MISSING", items[1].ProductID)
}

func TestRecommendIdempotent(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	request := []ProductStock{{ProductID: "OLJCESPC7Z", CurrentStock: 50}}
	first := svc.Recommend(context.Background(), request)
	second := svc.Recommend(context.Background(), request)

	require.NotNil(t, first[0].Recommendation)
	require.NotNil(t, second[0].Recommendation)
	assert.Equal(t, first[0].Recommendation.RecommendedStock, second[0].Recommendation.RecommendedStock)
	assert.Equal(t, first[0].Recommendation.ReorderPoint, second[0].Recommendation.ReorderPoint)
}

func TestMissingSourceDegradesConfidence(t *testing.T) {
	// Same history, same horizon; the run that expects a weather feed but
	// has no observations must answer with lower confidence, not an error.
	storeA := memory.NewStore()
	seedFlatProduct(t, storeA, "P1", 90, 10)
	full := newTestService(t, storeA, nil)

	storeB := memory.NewStore()
	seedFlatProduct(t, storeB, "P1", 90, 10)
	degraded := newTestService(t, storeB, []string{"weather"})

	withAll, err := full.Forecast(context.Background(), "P1", 7)
	require.NoError(t, err)
	withMissing, err := degraded.Forecast(context.Background(), "P1", 7)
	require.NoError(t, err)

	assert.Less(t, withMissing.ConfidenceScore, withAll.ConfidenceScore)
	assert.InDelta(t, withAll.PredictedDemand, withMissing.PredictedDemand, 0.5)
}

func TestInsightsRecordDecisions(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	svc.Recommend(context.Background(), []ProductStock{{ProductID: "OLJCESPC7Z", CurrentStock: 50}})

	recent, performance := svc.Insights(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "OLJCESPC7Z", recent[0].ProductID)
	assert.Equal(t, 1, performance["total_predictions"])
}

func TestRunLearningWithoutMaturedForecasts(t *testing.T) {
	store := memory.NewStore()
	seedFlatProduct(t, store, "OLJCESPC7Z", 90, 10)
	svc := newTestService(t, store, nil)

	_, err := svc.Forecast(context.Background(), "OLJCESPC7Z", 7)
	require.NoError(t, err)

	// Nothing has matured and no product has enough accuracy history, so
	// the run completes without publishing any weight state.
	require.NoError(t, svc.RunLearning(context.Background()))

	state, err := store.WeightState(context.Background(), "OLJCESPC7Z")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.Version)
}

func TestSalesStdDev(t *testing.T) {
	records := []domain.SalesRecord{
		{Quantity: 10}, {Quantity: 10}, {Quantity: 10},
	}
	assert.Equal(t, 0.0, salesStdDev(records))

	records = append(records, domain.SalesRecord{Quantity: 20})
	assert.Greater(t, salesStdDev(records), 0.0)
}
