package memory

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

// SeedDemoData loads a synthetic catalog with sales history so the service
// answers forecasts out of the box. The generator layers a weekend boost, a
// mild trend, and noise over a base demand, mirroring real retail series.
func SeedDemoData(ctx context.Context, store *Store, days int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	products := []domain.Product{
		{ID: "OLJCESPC7Z", Category: "accessories", LeadTimeDays: 3, ServiceLevel: 0.9},
		{ID: "66VCHSJNUP", Category: "apparel", LeadTimeDays: 5, ServiceLevel: 0.95},
		{ID: "1YMWWN1N4O", Category: "home", LeadTimeDays: 7, ServiceLevel: 0.9},
		{ID: "L9ECAV7KIM", Category: "outdoor", LeadTimeDays: 4, ServiceLevel: 0.85},
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)

	for _, p := range products {
		if err := store.UpsertProduct(ctx, p); err != nil {
			return err
		}

		baseDemand := float64(10 + rng.Intn(90))
		records := make([]domain.SalesRecord, 0, days)
		for i := 0; i < days; i++ {
			date := now.AddDate(0, 0, -(days - i))

			weekly := 0.9
			if dow := date.Weekday(); dow == time.Saturday || dow == time.Sunday {
				weekly = 1.2
			}
			trend := 1 + (float64(i)/float64(days))*(rng.Float64()*0.6-0.3)
			noise := 0.7 + rng.Float64()*0.6

			qty := int(baseDemand * weekly * trend * noise)
			if qty < 0 {
				qty = 0
			}
			records = append(records, domain.SalesRecord{
				ProductID: p.ID,
				Date:      date,
				Quantity:  qty,
			})
		}
		if err := store.AppendSales(ctx, records...); err != nil {
			return err
		}

		// A sparse scattering of raw observations per source; dates with
		// no observation exercise the missing-signal degrade path.
		signals := make([]domain.ExternalSignal, 0, days/2)
		for i := 0; i < days; i += 2 {
			date := now.AddDate(0, 0, -(days - i))
			signals = append(signals,
				domain.ExternalSignal{Source: "weather", Date: date, RawValue: -10 + rng.Float64()*45},
				domain.ExternalSignal{Source: "social", Date: date, RawValue: rng.Float64()},
				domain.ExternalSignal{Source: "economic", Date: date, RawValue: 0.8 + rng.Float64()*0.4},
			)
		}
		if err := store.AppendSignals(ctx, p.ID, signals...); err != nil {
			return err
		}
	}

	log.Info().Int("products", len(products)).Int("days", days).Msg("seeded demo data")
	return nil
}
