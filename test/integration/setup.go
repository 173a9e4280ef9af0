package integration

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kart-ledger/internal/config"
	"kart-ledger/internal/database"
	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and the
// application schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	dbConfig := config.DatabaseConfig{
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPoolFromURL(ctx, connStr, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedProducts stores the test catalogue: mug (1500, 10 in stock), poster
// (7500, 5 in stock) and tee with Size and Colour variations.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	products := repository.NewProductRepository(pool, zerolog.Nop())

	catalogue := []model.Product{
		{ID: "mug", Name: "Enamel Mug", PriceCents: 1500, StockQuantity: 10},
		{ID: "poster", Name: "Risograph Poster", PriceCents: 7500, StockQuantity: 5},
		{
			ID:         "tee",
			Name:       "Organic Tee",
			PriceCents: 2500,
			Variations: []model.VariationGroup{
				{Name: "Size", Options: []model.VariationOption{
					{Value: "M", StockQuantity: 5},
					{Value: "L", StockQuantity: 3, PriceAdjustmentCents: 200},
				}},
			},
		},
	}

	for i := range catalogue {
		if err := products.Save(ctx, &catalogue[i]); err != nil {
			t.Fatalf("failed to seed product %s: %v", catalogue[i].ID, err)
		}
	}
}

// SeedUser creates a registered user holding balance points.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email string, balance int64) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	id := uuid.New()

	users := repository.NewUserRepository(pool, zerolog.Nop())
	if err := users.Upsert(ctx, &model.User{ID: id, Email: email, Name: "Integration Customer"}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	if _, err := pool.Exec(ctx, "UPDATE users SET bonus_points = $2 WHERE id = $1", id, balance); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	return id
}

// WriteDiscountBatch writes a gzipped discount batch into a temporary
// directory and returns its path.
func WriteDiscountBatch(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "batch.csv.gz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if _, err := gz.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to flush batch: %v", err)
	}
	return path
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{
		"return_requests", "point_grants", "orders", "discount_codes",
		"users", "product_variation_options", "products", "order_sequences",
	}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
