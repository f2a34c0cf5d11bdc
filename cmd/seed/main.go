// cmd/seed/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func mustDB(c *cli.Context) *sql.DB {
	return c.Context.Value(dbKey).(*sql.DB)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Initialize and seed the inventory agent database",
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Create the agent's tables",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: createSchema,
			},
			{
				Name:  "demo",
				Usage: "Load a synthetic catalog with sales history and signal observations",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.IntFlag{Name: "days", Value: 90, Usage: "Days of history to generate"},
					&cli.Int64Flag{Name: "seed", Value: 1, Usage: "Random seed for the generator"},
				},
				Before: initDB,
				After:  closeDB,
				Action: seedDemo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func createSchema(c *cli.Context) error {
	db := mustDB(c)
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			lead_time_days INT NOT NULL DEFAULT 3,
			service_level DOUBLE PRECISION NOT NULL DEFAULT 0.9,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS sales_records (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			date DATE NOT NULL,
			quantity INT NOT NULL CHECK (quantity >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_product_date ON sales_records (product_id, date)`,
		`CREATE TABLE IF NOT EXISTS external_signals (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			source TEXT NOT NULL,
			date DATE NOT NULL,
			raw_value DOUBLE PRECISION NOT NULL,
			impact DOUBLE PRECISION NOT NULL DEFAULT 0,
			missing BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_product_date ON external_signals (product_id, date)`,
		`CREATE TABLE IF NOT EXISTS weight_states (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			version BIGINT NOT NULL,
			weights JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (product_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS accuracy_records (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			forecast_id TEXT NOT NULL,
			realized_demand DOUBLE PRECISION NOT NULL,
			signed_error DOUBLE PRECISION NOT NULL,
			abs_pct_error DOUBLE PRECISION NOT NULL,
			contributions JSONB,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(c.Context, stmt); err != nil {
			return fmt.Errorf("failed to run schema statement: %w", err)
		}
	}
	log.Println("schema created")
	return nil
}

type demoProduct struct {
	id           string
	category     string
	leadTimeDays int
	serviceLevel float64
}

func seedDemo(c *cli.Context) error {
	db := mustDB(c)
	days := c.Int("days")
	rng := rand.New(rand.NewSource(c.Int64("seed")))

	products := []demoProduct{
		{"OLJCESPC7Z", "accessories", 3, 0.9},
		{"66VCHSJNUP", "apparel", 5, 0.95},
		{"1YMWWN1N4O", "home", 7, 0.9},
		{"L9ECAV7KIM", "outdoor", 4, 0.85},
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)

	for _, p := range products {
		if _, err := db.ExecContext(c.Context, `
			INSERT INTO products (id, category, lead_time_days, service_level)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				lead_time_days = EXCLUDED.lead_time_days,
				service_level = EXCLUDED.service_level,
				updated_at = NOW()
		`, p.id, p.category, p.leadTimeDays, p.serviceLevel); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.id, err)
		}

		baseDemand := float64(10 + rng.Intn(90))
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
			if _, err := db.ExecContext(c.Context, `
				INSERT INTO sales_records (product_id, date, quantity) VALUES ($1, $2, $3)
			`, p.id, date, qty); err != nil {
				return fmt.Errorf("failed to insert sales record: %w", err)
			}

			if i%2 != 0 {
				continue
			}
			observations := map[string]float64{
				"weather":  -10 + rng.Float64()*45,
				"social":   rng.Float64(),
				"economic": 0.8 + rng.Float64()*0.4,
			}
			for source, raw := range observations {
				if _, err := db.ExecContext(c.Context, `
					INSERT INTO external_signals (product_id, source, date, raw_value) VALUES ($1, $2, $3, $4)
				`, p.id, source, date, raw); err != nil {
					return fmt.Errorf("failed to insert signal: %w", err)
				}
			}
		}
		log.Printf("seeded %s: %d days of history", p.id, days)
	}
	return nil
}
