package main

import (
	"context"
	"fmt"
	"os"

	"kart-ledger/internal/config"
	"kart-ledger/internal/database"
	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/joho/godotenv"
)

// catalogue is the demo product set, including one product with variations.
var catalogue = []model.Product{
	{ID: "mug", Name: "Enamel Mug", PriceCents: 1500, StockQuantity: 40},
	{ID: "poster", Name: "Risograph Poster", PriceCents: 7500, StockQuantity: 12},
	{
		ID:         "tee",
		Name:       "Organic Tee",
		PriceCents: 2500,
		Variations: []model.VariationGroup{
			{Name: "Size", Options: []model.VariationOption{
				{Value: "S", StockQuantity: 10},
				{Value: "M", StockQuantity: 15},
				{Value: "L", StockQuantity: 8, PriceAdjustmentCents: 200},
			}},
			{Name: "Colour", Options: []model.VariationOption{
				{Value: "Black", StockQuantity: 20},
				{Value: "White", StockQuantity: 13},
			}},
		},
	},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("seeding needs STORE_DRIVER=postgres, got %s", cfg.Database.Driver)
	}

	logger := config.NewLogger(cfg.Logger)
	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var dbName string
	if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return fmt.Errorf("QueryRow failed: %w", err)
	}
	fmt.Printf("Connected to database: %s\n", dbName)

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	products := repository.NewProductRepository(pool, logger)
	for i := range catalogue {
		if err := products.Save(ctx, &catalogue[i]); err != nil {
			return fmt.Errorf("failed to save product %s: %w", catalogue[i].ID, err)
		}
		fmt.Printf("  - %s (%s)\n", catalogue[i].ID, catalogue[i].Name)
	}

	fmt.Printf("\nSeeded %d products\n", len(catalogue))
	return nil
}
