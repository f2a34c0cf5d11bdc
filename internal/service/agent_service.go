// internal/service/agent_service.go
package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/cache"
	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/forecast"
	"github.com/stockpilot/inventory-agent/internal/insights"
	"github.com/stockpilot/inventory-agent/internal/learning"
	"github.com/stockpilot/inventory-agent/internal/optimize"
	"github.com/stockpilot/inventory-agent/internal/repository"
	"github.com/stockpilot/inventory-agent/internal/signals"
	"golang.org/x/sync/errgroup"
)

// pendingForecast is a produced forecast waiting for its horizon to elapse
// so it can be scored against realized sales.
type pendingForecast struct {
	forecast domain.ForecastResult
	start    time.Time
}

// AgentService orchestrates the forecasting pipeline: store -> decomposition
// -> signal fusion -> optimization -> explanation, plus the accuracy loop
// feeding learning. Requests are stateless and run independently; the only
// shared mutable state is the versioned WeightState behind the store.
type AgentService struct {
	store     repository.SignalStore
	decompose *forecast.Decomposer
	processor *signals.Processor
	model     *forecast.Model
	optimizer *optimize.Optimizer
	loop      *learning.FeedbackLoop
	explainer *insights.Explainer
	cache     cache.ForecastCache
	cfg       config.ForecastConfig

	mu      sync.Mutex
	pending map[string]pendingForecast
}

func NewAgentService(
	store repository.SignalStore,
	decomposer *forecast.Decomposer,
	processor *signals.Processor,
	model *forecast.Model,
	optimizer *optimize.Optimizer,
	loop *learning.FeedbackLoop,
	explainer *insights.Explainer,
	forecastCache cache.ForecastCache,
	cfg config.ForecastConfig,
) *AgentService {
	if forecastCache == nil {
		forecastCache = cache.NewNoopForecastCache()
	}
	return &AgentService{
		store:     store,
		decompose: decomposer,
		processor: processor,
		model:     model,
		optimizer: optimizer,
		loop:      loop,
		explainer: explainer,
		cache:     forecastCache,
		cfg:       cfg,
		pending:   make(map[string]pendingForecast),
	}
}

// Forecast runs the full pipeline for one product. A request that loses its
// external signals to the deadline still returns, with those cells missing
// and confidence reduced; only missing history fails it.
func (s *AgentService) Forecast(ctx context.Context, productID string, horizonDays int) (domain.ForecastResult, error) {
	if horizonDays <= 0 {
		return domain.ForecastResult{}, domain.ErrInvalidHorizon
	}
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return domain.ForecastResult{}, err
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	history, err := s.store.SalesHistory(ctx, productID, s.cfg.LookbackDays, asOf)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	weights, err := s.store.WeightState(ctx, productID)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	if cached, ok, err := s.cache.Get(ctx, productID, horizonDays, weights.Version, len(history)); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("forecast cache get failed")
	}

	decomposition, err := s.decompose.Decompose(history)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	start := asOf.AddDate(0, 0, 1)
	grid, err := s.processor.Impacts(ctx, productID, start, start.AddDate(0, 0, horizonDays-1))
	if err != nil {
		return domain.ForecastResult{}, err
	}

	accuracy, err := s.store.AccuracyRecords(ctx, productID, s.cfg.LookbackDays)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	result, err := s.model.Forecast(forecast.Input{
		Decomposition: decomposition,
		Impacts:       grid,
		Weights:       weights,
		Start:         start,
		HorizonDays:   horizonDays,
		Accuracy:      accuracy,
		HistoryStdDev: salesStdDev(history),
		Aggregation:   forecast.AggregateSum,
	})
	if err != nil {
		return domain.ForecastResult{}, err
	}

	if err := s.cache.Set(ctx, result, len(history)); err != nil {
		log.Warn().Err(err).Msg("forecast cache set failed")
	}
	s.trackPending(result, start)

	return result, nil
}

// ProductStock is one item of a batch recommendation request.
type ProductStock struct {
	ProductID    string `json:"product_id"`
	CurrentStock int    `json:"current_stock"`
}

// RecommendationItem carries either a recommendation or a per-item error;
// one bad product never fails the whole batch.
type RecommendationItem struct {
	Recommendation *domain.Recommendation `json:"recommendation,omitempty"`
	ProductID      string                 `json:"product_id"`
	Error          string                 `json:"error,omitempty"`
}

// DefaultRecommendationHorizon is the forecast window recommendations are
// priced against.
const DefaultRecommendationHorizon = 7

// Recommend fans the batch out per product. Items run in parallel; results
// keep request order.
func (s *AgentService) Recommend(ctx context.Context, items []ProductStock) []RecommendationItem {
	results := make([]RecommendationItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			rec, err := s.recommendOne(gctx, item)
			if err != nil {
				results[i] = RecommendationItem{ProductID: item.ProductID, Error: err.Error()}
				return nil
			}
			results[i] = RecommendationItem{ProductID: item.ProductID, Recommendation: &rec}
			return nil
		})
	}
	// Workers report per-item errors in-place and never return one.
	_ = g.Wait()

	return results
}

func (s *AgentService) recommendOne(ctx context.Context, item ProductStock) (domain.Recommendation, error) {
	if item.CurrentStock < 0 {
		return domain.Recommendation{}, domain.ErrInvalidStock
	}

	product, err := s.store.GetProduct(ctx, item.ProductID)
	if err != nil {
		return domain.Recommendation{}, err
	}

	result, err := s.Forecast(ctx, item.ProductID, DefaultRecommendationHorizon)
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec, err := s.optimizer.Recommend(product, result, item.CurrentStock)
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec.Reasoning = s.explainer.Explain(ctx, result, rec)
	rec.ExternalFactors = insights.ExternalFactors(result)
	return rec, nil
}

// Insights returns recent decisions plus a model-performance summary.
func (s *AgentService) Insights(limit int) (recent []domain.Insight, performance map[string]any) {
	return s.explainer.Recent(limit), s.explainer.Performance()
}

// RunLearning scores matured forecasts against realized sales, then runs one
// feedback-loop cycle. Also invoked by the periodic scheduler.
func (s *AgentService) RunLearning(ctx context.Context) error {
	if err := s.scorePending(ctx); err != nil {
		return err
	}
	return s.loop.RunOnce(ctx)
}

// trackPending remembers a forecast until its horizon has fully elapsed.
func (s *AgentService) trackPending(result domain.ForecastResult, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[result.ID]; !exists {
		s.pending[result.ID] = pendingForecast{forecast: result, start: start}
	}
}

// scorePending converts matured forecasts into AccuracyRecords: realized
// demand summed over the horizon, signed error, and absolute-percentage
// error, with the per-input contributions the learning loop correlates
// against.
func (s *AgentService) scorePending(ctx context.Context) error {
	now := time.Now().UTC()

	s.mu.Lock()
	matured := make([]pendingForecast, 0)
	for id, p := range s.pending {
		if now.After(p.start.AddDate(0, 0, p.forecast.HorizonDays)) {
			matured = append(matured, p)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, p := range matured {
		end := p.start.AddDate(0, 0, p.forecast.HorizonDays-1)
		history, err := s.store.SalesHistory(ctx, p.forecast.ProductID, p.forecast.HorizonDays, end)
		if err != nil {
			return err
		}

		var realized float64
		for _, r := range history {
			if !r.Date.Before(p.start) {
				realized += float64(r.Quantity)
			}
		}

		signedErr := p.forecast.PredictedDemand - realized
		absPct := 0.0
		if realized > 0 {
			absPct = math.Abs(signedErr) / realized
		} else if p.forecast.PredictedDemand > 0 {
			absPct = 1
		}

		contributions := make(map[string]float64, len(p.forecast.Factors))
		for _, f := range p.forecast.Factors {
			contributions[f.Signal] = f.Contribution
		}

		record := domain.AccuracyRecord{
			ProductID:      p.forecast.ProductID,
			ForecastID:     p.forecast.ID,
			RealizedDemand: realized,
			SignedError:    signedErr,
			AbsPctError:    absPct,
			Contributions:  contributions,
			RecordedAt:     now,
		}
		if err := s.store.AppendAccuracy(ctx, record); err != nil {
			return err
		}
		log.Debug().
			Str("product_id", record.ProductID).
			Float64("signed_error", record.SignedError).
			Msg("scored matured forecast")
	}
	return nil
}

// salesStdDev is the population standard deviation of daily quantities,
// feeding the confidence interval.
func salesStdDev(records []domain.SalesRecord) float64 {
	if len(records) < 2 {
		return 0
	}

	var sum float64
	for _, r := range records {
		sum += float64(r.Quantity)
	}
	mean := sum / float64(len(records))

	var variance float64
	for _, r := range records {
		d := float64(r.Quantity) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(records)))
}

// IsClientError reports whether an error maps to a caller mistake rather
// than a server failure.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidHorizon) ||
		errors.Is(err, domain.ErrInvalidStock) ||
		errors.Is(err, domain.ErrUnknownProduct) ||
		errors.Is(err, domain.ErrInsufficientHistory)
}
