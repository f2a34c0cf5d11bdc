package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	"github.com/stockpilot/inventory-agent/internal/service"
	"github.com/stockpilot/inventory-agent/internal/signals"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.ForecastConfig{
		LookbackDays:     90,
		MinHistoryPoints: 14,
		SmoothingAlpha:   0.3,
		TrendWindowDays:  28,
		SeasonalFloor:    0.1,
		ConfCompleteness: 0.4,
		ConfAccuracy:     0.4,
		ConfStability:    0.2,
	}

	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, domain.Product{
		ID: "OLJCESPC7Z", Category: "accessories", LeadTimeDays: 3, ServiceLevel: 0.9,
	}))
	now := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < 90; i++ {
		require.NoError(t, store.AppendSales(ctx, domain.SalesRecord{
			ProductID: "OLJCESPC7Z",
			Date:      now.AddDate(0, 0, -(90 - i)),
			Quantity:  10,
		}))
	}

	registry, err := signals.NewRegistry(nil)
	require.NoError(t, err)

	svc := service.NewAgentService(
		store,
		forecast.NewDecomposer(cfg),
		signals.NewProcessor(registry, store, nil),
		forecast.NewModel(cfg),
		optimize.NewOptimizer(config.OptimizerConfig{SigmaScale: 0.5, SigmaFloor: 0.5, BufferRatio: 1.0}),
		learning.NewFeedbackLoop(store, config.LearningConfig{LearningRate: 0.05, MinSamples: 5, WindowSize: 50}),
		insights.NewExplainer(nil, 10),
		cache.NewNoopForecastCache(),
		cfg,
	)

	router := gin.New()
	handler := NewAgentHandler(svc, 5*time.Second)
	router.POST("/forecast", handler.Forecast)
	router.POST("/inventory/recommendations", handler.Recommendations)
	router.GET("/agent/insights", handler.Insights)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestForecastEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/forecast", gin.H{
		"product_id":    "OLJCESPC7Z",
		"forecast_days": 7,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.ForecastResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "OLJCESPC7Z", result.ProductID)
	assert.InDelta(t, 70.0, result.PredictedDemand, 3.0)
	assert.Greater(t, result.ConfidenceScore, 0.0)
}

func TestForecastEndpointRejectsBadHorizon(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/forecast", gin.H{
		"product_id":    "OLJCESPC7Z",
		"forecast_days": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "horizon")
}

func TestForecastEndpointRequiresProductID(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/forecast", gin.H{"forecast_days": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/inventory/recommendations", gin.H{
		"products": []gin.H{
			{"product_id": "OLJCESPC7Z", "current_stock": 50},
			{"product_id": "UNKNOWN", "current_stock": 5},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Recommendations []map[string]any `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Recommendations, 2)

	first := resp.Recommendations[0]
	assert.Equal(t, "OLJCESPC7Z", first["product_id"])
	assert.Greater(t, first["recommended_stock"], first["reorder_point"])
	assert.NotEmpty(t, first["reasoning"])

	second := resp.Recommendations[1]
	assert.Equal(t, "UNKNOWN", second["product_id"])
	assert.NotEmpty(t, second["error"])
}

func TestRecommendationsEndpointRequiresProducts(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/inventory/recommendations", gin.H{"products": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsightsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	// Generate one decision first.
	doJSON(t, router, http.MethodPost, "/inventory/recommendations", gin.H{
		"products": []gin.H{{"product_id": "OLJCESPC7Z", "current_stock": 50}},
	})

	w := doJSON(t, router, http.MethodGet, "/agent/insights", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Insights         []domain.Insight `json:"insights"`
		ModelPerformance map[string]any   `json:"model_performance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Insights, 1)
	assert.Equal(t, "OLJCESPC7Z", resp.Insights[0].ProductID)
	assert.EqualValues(t, 1, resp.ModelPerformance["total_predictions"])
}
