// internal/optimize/optimizer.go
package optimize

import (
	"fmt"
	"math"

	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

// Optimizer turns a forecast plus current stock into a stock policy. It only
// recommends; actual stock mutation belongs to the external inventory system.
type Optimizer struct {
	cfg config.OptimizerConfig
}

func NewOptimizer(cfg config.OptimizerConfig) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Recommend computes:
//
//	leadTimeDemand = mean daily forecast * lead time
//	safetyStock    = z(serviceLevel) * sigma * sqrt(lead time)
//	reorderPoint   = leadTimeDemand + safetyStock
//	recommended    = reorderPoint + cycle stock buffer
//
// where sigma grows as confidence shrinks, so an uncertain forecast carries
// more safety stock. recommended never lands below reorderPoint.
func (o *Optimizer) Recommend(product domain.Product, forecast domain.ForecastResult, currentStock int) (domain.Recommendation, error) {
	if currentStock < 0 {
		return domain.Recommendation{}, fmt.Errorf("%w: got %d", domain.ErrInvalidStock, currentStock)
	}

	dailyMean := forecast.PredictedDemand / float64(forecast.HorizonDays)
	leadTime := float64(product.LeadTimeDays)
	if leadTime <= 0 {
		leadTime = 1
	}

	leadTimeDemand := dailyMean * leadTime

	sigma := dailyMean*(1-forecast.ConfidenceScore)*o.cfg.SigmaScale + o.cfg.SigmaFloor
	z := serviceLevelZ(product.ServiceLevel)
	safetyStock := z * sigma * math.Sqrt(leadTime)

	reorderPoint := int(math.Ceil(leadTimeDemand + safetyStock))
	cycleStock := forecast.PredictedDemand * o.cfg.BufferRatio
	recommended := int(math.Ceil(float64(reorderPoint) + cycleStock))
	if recommended < reorderPoint {
		recommended = reorderPoint
	}

	return domain.Recommendation{
		ProductID:        product.ID,
		CurrentStock:     currentStock,
		RecommendedStock: recommended,
		ReorderPoint:     reorderPoint,
		DemandForecast:   forecast.PredictedDemand,
		ConfidenceScore:  forecast.ConfidenceScore,
		ForecastID:       forecast.ID,
	}, nil
}

// serviceLevelZ is the standard-normal inverse CDF of the target service
// level, via erfinv. Levels are clamped away from 0 and 1 where the quantile
// diverges.
func serviceLevelZ(serviceLevel float64) float64 {
	const lo, hi = 0.5, 0.999
	if serviceLevel < lo {
		serviceLevel = lo
	}
	if serviceLevel > hi {
		serviceLevel = hi
	}
	return math.Sqrt2 * math.Erfinv(2*serviceLevel-1)
}
