// internal/learning/feedback.go
package learning

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/repository"
)

// FeedbackLoop adapts fusion weights from observed forecast error. It is the
// sole writer of WeightState: each update derives a new version from the
// live snapshot and publishes it whole, never editing the old one in place.
type FeedbackLoop struct {
	store repository.SignalStore
	cfg   config.LearningConfig
}

func NewFeedbackLoop(store repository.SignalStore, cfg config.LearningConfig) *FeedbackLoop {
	return &FeedbackLoop{store: store, cfg: cfg}
}

// Run executes the loop on its configured interval until the context ends.
func (l *FeedbackLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", l.cfg.Interval).Msg("learning feedback loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("learning feedback loop stopped")
			return
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("learning cycle failed")
			}
		}
	}
}

// RunOnce updates weights for every product in the catalog. Products without
// enough accuracy samples are skipped and keep their current snapshot.
func (l *FeedbackLoop) RunOnce(ctx context.Context) error {
	products, err := l.store.ListProducts(ctx)
	if err != nil {
		return err
	}

	updated := 0
	for _, p := range products {
		changed, err := l.UpdateProduct(ctx, p.ID)
		if err != nil {
			log.Warn().Err(err).Str("product_id", p.ID).Msg("weight update failed")
			continue
		}
		if changed {
			updated++
		}
	}
	log.Info().Int("products", len(products)).Int("updated", updated).Msg("learning cycle complete")
	return nil
}

// UpdateProduct runs one bounded weight-update step for a single product.
// It reports whether a new WeightState version was published.
func (l *FeedbackLoop) UpdateProduct(ctx context.Context, productID string) (bool, error) {
	records, err := l.store.AccuracyRecords(ctx, productID, l.cfg.WindowSize)
	if err != nil {
		return false, err
	}
	if len(records) < l.cfg.MinSamples {
		return false, nil
	}

	current, err := l.store.WeightState(ctx, productID)
	if err != nil {
		return false, err
	}

	next := current.Clone()
	next.ProductID = productID
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()

	for input := range next.Weights {
		corr := errorCorrelation(records, input)
		// An input whose contribution tracks over-forecasting gets its
		// weight stepped down, and vice versa. The step is bounded by
		// the learning rate regardless of correlation strength.
		step := l.cfg.LearningRate * corr
		next.Weights[input] = clamp01(next.Weights[input] - step)
	}
	normalizeExternalGroup(next.Weights)

	if err := l.store.PublishWeightState(ctx, next); err != nil {
		return false, err
	}
	log.Debug().Str("product_id", productID).Int64("version", next.Version).Msg("published weight state")
	return true, nil
}

// errorCorrelation is the Pearson correlation between an input's recorded
// contribution and the signed forecast error across the window. Zero when
// either side has no variance.
func errorCorrelation(records []domain.AccuracyRecord, input string) float64 {
	n := float64(len(records))

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for _, r := range records {
		x := r.Contributions[input]
		y := r.SignedError
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		sumYY += y * y
	}

	cov := n*sumXY - sumX*sumY
	varX := n*sumXX - sumX*sumX
	varY := n*sumYY - sumY*sumY
	if varX <= 0 || varY <= 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// normalizeExternalGroup rescales the external-source weights so their sum
// stays within 1, keeping the fused signal term bounded. Trend and
// seasonality are each clamped individually and stay out of the group.
func normalizeExternalGroup(weights map[string]float64) {
	var sum float64
	for input, w := range weights {
		if input == domain.InputTrend || input == domain.InputSeasonality {
			continue
		}
		sum += w
	}
	if sum <= 1 {
		return
	}
	for input, w := range weights {
		if input == domain.InputTrend || input == domain.InputSeasonality {
			continue
		}
		weights[input] = w / sum
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
