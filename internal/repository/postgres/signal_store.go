// internal/repository/postgres/signal_store.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stockpilot/inventory-agent/internal/domain"
	"github.com/stockpilot/inventory-agent/internal/repository"
)

type signalStore struct {
	db *DB
}

// NewSignalStore returns a postgres-backed SignalStore.
func NewSignalStore(db *DB) repository.SignalStore {
	return &signalStore{db: db}
}

func (s *signalStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	query := `SELECT id, category, lead_time_days, service_level FROM products WHERE id = $1`
	if err := s.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrUnknownProduct
		}
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (s *signalStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	query := `SELECT id, category, lead_time_days, service_level FROM products ORDER BY id`
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *signalStore) UpsertProduct(ctx context.Context, p domain.Product) error {
	query := `
		INSERT INTO products (id, category, lead_time_days, service_level, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			lead_time_days = EXCLUDED.lead_time_days,
			service_level = EXCLUDED.service_level,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Category, p.LeadTimeDays, p.ServiceLevel); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *signalStore) SalesHistory(ctx context.Context, productID string, lookbackDays int, asOf time.Time) ([]domain.SalesRecord, error) {
	records := []domain.SalesRecord{}
	query := `
		SELECT product_id, date, quantity
		FROM sales_records
		WHERE product_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	cutoff := asOf.AddDate(0, 0, -lookbackDays)
	if err := s.db.SelectContext(ctx, &records, query, productID, cutoff, asOf); err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}
	return records, nil
}

func (s *signalStore) AppendSales(ctx context.Context, records ...domain.SalesRecord) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO sales_records (product_id, date, quantity) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.ProductID, r.Date, r.Quantity); err != nil {
				return fmt.Errorf("failed to insert sales record: %w", err)
			}
		}
		return nil
	})
}

func (s *signalStore) SignalsInRange(ctx context.Context, productID string, from, to time.Time) ([]domain.ExternalSignal, error) {
	signals := []domain.ExternalSignal{}
	query := `
		SELECT source, date, raw_value, impact, missing
		FROM external_signals
		WHERE product_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	if err := s.db.SelectContext(ctx, &signals, query, productID, from, to); err != nil {
		return nil, fmt.Errorf("failed to load external signals: %w", err)
	}
	return signals, nil
}

func (s *signalStore) AppendSignals(ctx context.Context, productID string, signals ...domain.ExternalSignal) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO external_signals (product_id, source, date, raw_value, impact, missing)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, sig := range signals {
			if _, err := stmt.ExecContext(ctx, productID, sig.Source, sig.Date, sig.RawValue, sig.Impact, sig.Missing); err != nil {
				return fmt.Errorf("failed to insert external signal: %w", err)
			}
		}
		return nil
	})
}

func (s *signalStore) WeightState(ctx context.Context, productID string) (domain.WeightState, error) {
	var row struct {
		ProductID string    `db:"product_id"`
		Version   int64     `db:"version"`
		Weights   []byte    `db:"weights"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := `
		SELECT product_id, version, weights, updated_at
		FROM weight_states
		WHERE product_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	if err := s.db.GetContext(ctx, &row, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.DefaultWeights(productID), nil
		}
		return domain.WeightState{}, fmt.Errorf("failed to load weight state: %w", err)
	}

	weights := map[string]float64{}
	if err := json.Unmarshal(row.Weights, &weights); err != nil {
		return domain.WeightState{}, fmt.Errorf("failed to decode weight state: %w", err)
	}
	return domain.WeightState{
		ProductID: row.ProductID,
		Version:   row.Version,
		Weights:   weights,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *signalStore) PublishWeightState(ctx context.Context, state domain.WeightState) error {
	payload, err := json.Marshal(state.Weights)
	if err != nil {
		return fmt.Errorf("failed to encode weight state: %w", err)
	}
	query := `
		INSERT INTO weight_states (product_id, version, weights, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, state.ProductID, state.Version, payload, state.UpdatedAt); err != nil {
		return fmt.Errorf("failed to publish weight state: %w", err)
	}
	return nil
}

func (s *signalStore) AccuracyRecords(ctx context.Context, productID string, limit int) ([]domain.AccuracyRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows := []struct {
		ProductID      string    `db:"product_id"`
		ForecastID     string    `db:"forecast_id"`
		RealizedDemand float64   `db:"realized_demand"`
		SignedError    float64   `db:"signed_error"`
		AbsPctError    float64   `db:"abs_pct_error"`
		Contributions  []byte    `db:"contributions"`
		RecordedAt     time.Time `db:"recorded_at"`
	}{}
	query := `
		SELECT product_id, forecast_id, realized_demand, signed_error, abs_pct_error, contributions, recorded_at
		FROM accuracy_records
		WHERE product_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	if err := s.db.SelectContext(ctx, &rows, query, productID, limit); err != nil {
		return nil, fmt.Errorf("failed to load accuracy records: %w", err)
	}

	records := make([]domain.AccuracyRecord, 0, len(rows))
	for _, row := range rows {
		contributions := map[string]float64{}
		if len(row.Contributions) > 0 {
			if err := json.Unmarshal(row.Contributions, &contributions); err != nil {
				return nil, fmt.Errorf("failed to decode accuracy contributions: %w", err)
			}
		}
		records = append(records, domain.AccuracyRecord{
			ProductID:      row.ProductID,
			ForecastID:     row.ForecastID,
			RealizedDemand: row.RealizedDemand,
			SignedError:    row.SignedError,
			AbsPctError:    row.AbsPctError,
			Contributions:  contributions,
			RecordedAt:     row.RecordedAt,
		})
	}
	return records, nil
}

func (s *signalStore) AppendAccuracy(ctx context.Context, record domain.AccuracyRecord) error {
	payload, err := json.Marshal(record.Contributions)
	if err != nil {
		return fmt.Errorf("failed to encode accuracy contributions: %w", err)
	}
	query := `
		INSERT INTO accuracy_records (product_id, forecast_id, realized_demand, signed_error, abs_pct_error, contributions, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query,
		record.ProductID, record.ForecastID, record.RealizedDemand,
		record.SignedError, record.AbsPctError, payload, record.RecordedAt); err != nil {
		return fmt.Errorf("failed to insert accuracy record: %w", err)
	}
	return nil
}
