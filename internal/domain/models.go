// internal/domain/models.go
package domain

import "time"

// Product describes one catalog item the agent plans stock for.
type Product struct {
	ID           string  `json:"id" db:"id"`
	Category     string  `json:"category" db:"category"`
	LeadTimeDays int     `json:"lead_time_days" db:"lead_time_days"`
	ServiceLevel float64 `json:"service_level" db:"service_level"`
}

// SalesRecord is one day of realized sales for a product. Records are
// append-only and ordered by date per product.
type SalesRecord struct {
	ProductID string    `json:"product_id" db:"product_id"`
	Date      time.Time `json:"date" db:"date"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// ExternalSignal is a raw observation from one external feed, plus its
// normalized impact in [-1, 1] (negative suppresses demand).
type ExternalSignal struct {
	Source   string    `json:"source" db:"source"`
	Date     time.Time `json:"date" db:"date"`
	RawValue float64   `json:"raw_value" db:"raw_value"`
	Impact   float64   `json:"impact" db:"impact"`
	Missing  bool      `json:"missing" db:"missing"`
}

// Decomposition is the baseline/trend/seasonality breakdown of a sales
// series. It is recomputed each forecast cycle and read-only to consumers.
type Decomposition struct {
	ProductID       string          `json:"product_id"`
	Baseline        float64         `json:"baseline"`
	TrendSlope      float64         `json:"trend_slope"`
	SeasonalFactors map[int]float64 `json:"seasonal_factors"` // day-of-week -> multiplier
	SampleCount     int             `json:"sample_count"`
}

// TrendDirection classifies the sign of a decomposition's trend slope.
func (d Decomposition) TrendDirection() string {
	switch {
	case d.TrendSlope > 0.01:
		return "increasing"
	case d.TrendSlope < -0.01:
		return "decreasing"
	default:
		return "stable"
	}
}

// FactorContribution is one fusion input's weighted contribution to a
// forecast, used for ranking and explanation.
type FactorContribution struct {
	Signal       string  `json:"signal"`
	Contribution float64 `json:"weighted_contribution"`
	Missing      bool    `json:"missing,omitempty"`
}

// ForecastResult is an immutable point forecast for one product and horizon.
type ForecastResult struct {
	ID                 string               `json:"forecast_id"`
	ProductID          string               `json:"product_id"`
	HorizonDays        int                  `json:"forecast_period_days"`
	PredictedDemand    float64              `json:"predicted_demand"`
	ConfidenceScore    float64              `json:"confidence_score"`
	ConfidenceInterval [2]float64           `json:"confidence_interval"`
	TrendDirection     string               `json:"trend_direction"`
	SeasonalityFactor  float64              `json:"seasonality_factor"`
	Factors            []FactorContribution `json:"contributing_factors"`
	ExternalSignals    map[string]float64   `json:"external_signals"`
	WeightVersion      int64                `json:"weight_version"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// Recommendation is the optimizer's stock policy for one product. It is
// produced on demand and never mutated after creation.
type Recommendation struct {
	ProductID        string   `json:"product_id"`
	CurrentStock     int      `json:"current_stock"`
	RecommendedStock int      `json:"recommended_stock"`
	ReorderPoint     int      `json:"reorder_point"`
	DemandForecast   float64  `json:"demand_forecast"`
	ConfidenceScore  float64  `json:"confidence_score"`
	Reasoning        string   `json:"reasoning"`
	ExternalFactors  []string `json:"external_factors"`
	ForecastID       string   `json:"forecast_id"`
}

// WeightState maps fusion-input names (trend, seasonality, and each external
// source tag) to weights in [0,1]. A WeightState is an immutable snapshot;
// the feedback loop supersedes it with a new version rather than mutating it.
type WeightState struct {
	ProductID string             `json:"product_id"`
	Version   int64              `json:"version"`
	Weights   map[string]float64 `json:"weights"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Clone returns a deep copy, so callers can derive a new version without
// touching the published snapshot.
func (w WeightState) Clone() WeightState {
	weights := make(map[string]float64, len(w.Weights))
	for k, v := range w.Weights {
		weights[k] = v
	}
	return WeightState{
		ProductID: w.ProductID,
		Version:   w.Version,
		Weights:   weights,
		UpdatedAt: w.UpdatedAt,
	}
}

// AccuracyRecord pairs a past forecast with the demand that actually
// materialized. Append-only; consumed by the learning feedback loop.
type AccuracyRecord struct {
	ProductID      string             `json:"product_id" db:"product_id"`
	ForecastID     string             `json:"forecast_id" db:"forecast_id"`
	RealizedDemand float64            `json:"realized_demand" db:"realized_demand"`
	SignedError    float64            `json:"signed_error" db:"signed_error"`
	AbsPctError    float64            `json:"abs_pct_error" db:"abs_pct_error"`
	Contributions  map[string]float64 `json:"contributions" db:"-"`
	RecordedAt     time.Time          `json:"recorded_at" db:"recorded_at"`
}

// Insight is one recent decision's structured explanation, served by the
// insights endpoint with a bounded history window.
type Insight struct {
	ProductID  string               `json:"product_id"`
	ForecastID string               `json:"forecast_id"`
	Summary    string               `json:"summary"`
	Factors    []FactorContribution `json:"factors"`
	Confidence float64              `json:"confidence_score"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Fusion input names used as WeightState keys alongside external source tags.
const (
	InputTrend       = "trend"
	InputSeasonality = "seasonality"
)
