// internal/insights/explainer.go
package insights

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

// Explainer assembles structured explanations for forecasts and
// recommendations and keeps a bounded window of recent decisions. Prose
// phrasing is delegated to the text collaborator; when that is missing or
// failing, the templated sentence built from the same structured factors is
// served instead. Explaining never fails a request.
type Explainer struct {
	collaborator TextCollaborator

	mu      sync.RWMutex
	history []domain.Insight
	window  int

	decisions     int
	confidenceSum float64
	lastUpdated   time.Time
}

func NewExplainer(collaborator TextCollaborator, historyWindow int) *Explainer {
	if historyWindow <= 0 {
		historyWindow = 100
	}
	return &Explainer{
		collaborator: collaborator,
		window:       historyWindow,
	}
}

// Explain produces the reasoning for one recommendation and records the
// decision in the insights history.
func (e *Explainer) Explain(ctx context.Context, forecast domain.ForecastResult, rec domain.Recommendation) string {
	summary := e.phrase(ctx, forecast, rec)

	e.record(domain.Insight{
		ProductID:  forecast.ProductID,
		ForecastID: forecast.ID,
		Summary:    summary,
		Factors:    forecast.Factors,
		Confidence: forecast.ConfidenceScore,
		CreatedAt:  time.Now().UTC(),
	})
	return summary
}

func (e *Explainer) phrase(ctx context.Context, forecast domain.ForecastResult, rec domain.Recommendation) string {
	fallback := templateSummary(forecast, rec)
	if e.collaborator == nil {
		return fallback
	}

	// Only structured factors go to the collaborator, never raw records.
	prompt := buildPrompt(forecast, rec)
	text, err := e.collaborator.GenerateText(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("product_id", forecast.ProductID).Msg("text collaborator unavailable, using template")
		return fallback
	}
	return strings.TrimSpace(text)
}

// ExternalFactors lists the sources whose contribution was material, phrased
// as "source (direction demand)".
func ExternalFactors(forecast domain.ForecastResult) []string {
	factors := []string{}
	for _, f := range forecast.Factors {
		if f.Signal == domain.InputTrend || f.Signal == domain.InputSeasonality {
			continue
		}
		if f.Missing {
			factors = append(factors, fmt.Sprintf("%s (missing)", f.Signal))
			continue
		}
		if f.Contribution == 0 {
			continue
		}
		direction := "increasing"
		if f.Contribution < 0 {
			direction = "decreasing"
		}
		factors = append(factors, fmt.Sprintf("%s (%s demand)", f.Signal, direction))
	}
	return factors
}

// Recent returns the newest insights, newest first, up to the history window.
func (e *Explainer) Recent(limit int) []domain.Insight {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]domain.Insight, 0, limit)
	for i := len(e.history) - 1; i >= len(e.history)-limit; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// Performance summarizes the explainer's decision history for the insights
// endpoint.
func (e *Explainer) Performance() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	avg := 0.0
	if e.decisions > 0 {
		avg = e.confidenceSum / float64(e.decisions)
	}
	return map[string]any{
		"total_predictions": e.decisions,
		"avg_confidence":    avg,
		"last_updated":      e.lastUpdated,
	}
}

func (e *Explainer) record(insight domain.Insight) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, insight)
	if len(e.history) > e.window {
		e.history = e.history[len(e.history)-e.window:]
	}
	e.decisions++
	e.confidenceSum += insight.Confidence
	e.lastUpdated = insight.CreatedAt
}

func templateSummary(forecast domain.ForecastResult, rec domain.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s: %.1f units over the next %d days (confidence %.0f%%, trend %s).",
		forecast.ProductID, forecast.PredictedDemand, forecast.HorizonDays,
		forecast.ConfidenceScore*100, forecast.TrendDirection)

	if top := topFactors(forecast.Factors, 3); len(top) > 0 {
		fmt.Fprintf(&b, " Main drivers: %s.", strings.Join(top, ", "))
	}
	if rec.RecommendedStock > 0 {
		fmt.Fprintf(&b, " Recommended stock %d with reorder point %d against current stock %d.",
			rec.RecommendedStock, rec.ReorderPoint, rec.CurrentStock)
	}
	return b.String()
}

func buildPrompt(forecast domain.ForecastResult, rec domain.Recommendation) string {
	var b strings.Builder
	b.WriteString("You are an inventory management assistant. Phrase a concise, business-friendly explanation for this stock recommendation.\n")
	fmt.Fprintf(&b, "Product: %s\n", forecast.ProductID)
	fmt.Fprintf(&b, "Predicted demand: %.1f units over %d days\n", forecast.PredictedDemand, forecast.HorizonDays)
	fmt.Fprintf(&b, "Confidence: %.2f\n", forecast.ConfidenceScore)
	fmt.Fprintf(&b, "Trend: %s\n", forecast.TrendDirection)
	fmt.Fprintf(&b, "Recommended stock: %d, reorder point: %d, current stock: %d\n",
		rec.RecommendedStock, rec.ReorderPoint, rec.CurrentStock)
	b.WriteString("Contributing factors (weighted):\n")
	for _, f := range forecast.Factors {
		if f.Missing {
			fmt.Fprintf(&b, "- %s: missing\n", f.Signal)
			continue
		}
		fmt.Fprintf(&b, "- %s: %+.2f\n", f.Signal, f.Contribution)
	}
	return b.String()
}

func topFactors(factors []domain.FactorContribution, n int) []string {
	top := []string{}
	for _, f := range factors {
		if len(top) == n {
			break
		}
		if f.Missing || f.Contribution == 0 {
			continue
		}
		top = append(top, fmt.Sprintf("%s (%+.1f)", f.Signal, f.Contribution))
	}
	return top
}
