// internal/repository/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/repository"
)

// Store is the default SignalStore: mutex-guarded maps, append-only slices.
// Weight states are stored as immutable snapshots, so readers can hold a
// returned value without racing the feedback loop's next publish.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    map[string][]domain.SalesRecord
	signals  map[string][]domain.ExternalSignal
	weights  map[string]domain.WeightState
	accuracy map[string][]domain.AccuracyRecord
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make(map[string][]domain.SalesRecord),
		signals:  make(map[string][]domain.ExternalSignal),
		weights:  make(map[string]domain.WeightState),
		accuracy: make(map[string][]domain.AccuracyRecord),
	}
}

var _ repository.SignalStore = (*Store)(nil)

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrUnknownProduct
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *Store) SalesHistory(ctx context.Context, productID string, lookbackDays int, asOf time.Time) ([]domain.SalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sales[productID]
	cutoff := asOf.AddDate(0, 0, -lookbackDays)

	records := make([]domain.SalesRecord, 0, len(all))
	for _, r := range all {
		if r.Date.Before(cutoff) || r.Date.After(asOf) {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (s *Store) AppendSales(ctx context.Context, records ...domain.SalesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.sales[r.ProductID] = append(s.sales[r.ProductID], r)
	}
	return nil
}

func (s *Store) SignalsInRange(ctx context.Context, productID string, from, to time.Time) ([]domain.ExternalSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.signals[productID]
	signals := make([]domain.ExternalSignal, 0, len(all))
	for _, sig := range all {
		if sig.Date.Before(from) || sig.Date.After(to) {
			continue
		}
		signals = append(signals, sig)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Date.Before(signals[j].Date) })
	return signals, nil
}

func (s *Store) AppendSignals(ctx context.Context, productID string, signals ...domain.ExternalSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[productID] = append(s.signals[productID], signals...)
	return nil
}

func (s *Store) WeightState(ctx context.Context, productID string) (domain.WeightState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, ok := s.weights[productID]; ok {
		return state, nil
	}
	return repository.DefaultWeights(productID), nil
}

func (s *Store) PublishWeightState(ctx context.Context, state domain.WeightState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[state.ProductID] = state
	return nil
}

func (s *Store) AccuracyRecords(ctx context.Context, productID string, limit int) ([]domain.AccuracyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.accuracy[productID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// Most recent records first.
	records := make([]domain.AccuracyRecord, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		records = append(records, all[i])
	}
	return records, nil
}

func (s *Store) AppendAccuracy(ctx context.Context, record domain.AccuracyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accuracy[record.ProductID] = append(s.accuracy[record.ProductID], record)
	return nil
}
