package repository

import (
	"context"
	"time"

	"github.com/stockpilot/inventory-agent/internal/domain"
)

// SignalStore hands the forecasting pipeline its raw inputs and collects its
// outputs. Pure data access; sales and accuracy records are append-only, and
// weight states are versioned snapshots that are superseded, never mutated.
type SignalStore interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpsertProduct(ctx context.Context, p domain.Product) error

	// SalesHistory returns records for the product inside the lookback
	// window ending at asOf, ordered by date ascending.
	SalesHistory(ctx context.Context, productID string, lookbackDays int, asOf time.Time) ([]domain.SalesRecord, error)
	AppendSales(ctx context.Context, records ...domain.SalesRecord) error

	// SignalsInRange returns raw external observations for the product
	// between from and to inclusive, any source.
	SignalsInRange(ctx context.Context, productID string, from, to time.Time) ([]domain.ExternalSignal, error)
	AppendSignals(ctx context.Context, productID string, signals ...domain.ExternalSignal) error

	// WeightState returns the live snapshot for the product, or the global
	// default when the product has no learning history yet.
	WeightState(ctx context.Context, productID string) (domain.WeightState, error)
	// PublishWeightState atomically replaces the live snapshot with a new
	// version. Only the learning feedback loop calls this.
	PublishWeightState(ctx context.Context, state domain.WeightState) error

	AccuracyRecords(ctx context.Context, productID string, limit int) ([]domain.AccuracyRecord, error)
	AppendAccuracy(ctx context.Context, record domain.AccuracyRecord) error
}

// DefaultWeights is the global WeightState used until a product has enough
// accuracy history for the feedback loop to learn its own.
func DefaultWeights(productID string) domain.WeightState {
	return domain.WeightState{
		ProductID: productID,
		Version:   0,
		Weights: map[string]float64{
			domain.InputTrend:       0.5,
			domain.InputSeasonality: 0.5,
			"weather":               0.2,
			"social":                0.1,
			"economic":              0.15,
		},
		UpdatedAt: time.Time{},
	}
}
