// internal/api/handlers/agent_handler.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/service"
)

type AgentHandler struct {
	service  *service.AgentService
	deadline time.Duration
}

func NewAgentHandler(svc *service.AgentService, requestDeadline time.Duration) *AgentHandler {
	return &AgentHandler{service: svc, deadline: requestDeadline}
}

type forecastRequest struct {
	ProductID    string `json:"product_id"`
	ForecastDays int    `json:"forecast_days"`
}

// Forecast handles POST /forecast.
func (h *AgentHandler) Forecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	if req.ForecastDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidHorizon.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	forecast, err := h.service.Forecast(ctx, req.ProductID, req.ForecastDays)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

type recommendationsRequest struct {
	Products []service.ProductStock `json:"products"`
}

// Recommendations handles POST /inventory/recommendations. Unknown products
// yield per-item error entries; the batch itself always answers 200.
func (h *AgentHandler) Recommendations(c *gin.Context) {
	var req recommendationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Products) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "products list is required"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	items := h.service.Recommend(ctx, req.Products)
	out := make([]any, 0, len(items))
	for _, item := range items {
		if item.Error != "" {
			out = append(out, gin.H{"product_id": item.ProductID, "error": item.Error})
			continue
		}
		out = append(out, item.Recommendation)
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": out})
}

// Insights handles GET /agent/insights.
func (h *AgentHandler) Insights(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	recent, performance := h.service.Insights(limit)
	c.JSON(http.StatusOK, gin.H{
		"timestamp":         time.Now().UTC(),
		"insights":          recent,
		"model_performance": performance,
	})
}

// RunLearning handles POST /agent/learning/run, the on-demand trigger for
// the feedback loop.
func (h *AgentHandler) RunLearning(c *gin.Context) {
	if err := h.service.RunLearning(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("on-demand learning run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "learning run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (h *AgentHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.deadline <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.deadline)
}

func (h *AgentHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if service.IsClientError(err) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
