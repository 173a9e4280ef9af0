package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kart-ledger/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = `id, name, price_cents, image, stock_quantity, in_stock, created_at`

// GetAll retrieves all products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	products, err := r.collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, r.attachVariations(ctx, products)
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.PriceCents, &p.Image, &p.StockQuantity, &p.InStock, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	products := []model.Product{p}
	if err := r.attachVariations(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}

	products, err := r.collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, r.attachVariations(ctx, products)
}

// Save upserts the product row and replaces its variation options.
func (r *productRepository) Save(ctx context.Context, product *model.Product) error {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, price_cents, image, stock_quantity, in_stock, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price_cents = EXCLUDED.price_cents,
				image = EXCLUDED.image,
				stock_quantity = EXCLUDED.stock_quantity,
				in_stock = EXCLUDED.in_stock
		`, product.ID, product.Name, product.PriceCents, product.Image,
			product.StockQuantity, product.StockQuantity > 0, product.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM product_variation_options WHERE product_id = $1`, product.ID); err != nil {
			return fmt.Errorf("failed to clear variation options: %w", err)
		}

		batch := &pgx.Batch{}
		for gi, group := range product.Variations {
			for oi, opt := range group.Options {
				batch.Queue(`
					INSERT INTO product_variation_options
						(product_id, group_name, group_position, value, position, price_adjustment_cents, stock_quantity, in_stock)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				`, product.ID, group.Name, gi, opt.Value, oi, opt.PriceAdjustmentCents, opt.StockQuantity, opt.StockQuantity > 0)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to save product")
		return err
	}

	r.logger.Debug().Str("product_id", product.ID).Msg("product saved")
	return nil
}

// DecrementStock takes quantity from the root stock when enough is left.
func (r *productRepository) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
			in_stock = stock_quantity - $2 > 0
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity
	`

	var remaining int
	err := r.pool.QueryRow(ctx, query, productID, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.stockMiss(ctx, `SELECT 1 FROM products WHERE id = $1`, productID)
		}
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to decrement stock")
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}

	r.logger.Debug().
		Str("product_id", productID).
		Int("quantity", quantity).
		Int("remaining", remaining).
		Msg("stock decremented")
	return remaining, nil
}

// IncrementStock puts quantity back on the root stock.
func (r *productRepository) IncrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
			in_stock = stock_quantity + $2 > 0
		WHERE id = $1
		RETURNING stock_quantity
	`

	var remaining int
	err := r.pool.QueryRow(ctx, query, productID, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to increment stock")
		return 0, fmt.Errorf("failed to increment stock: %w", err)
	}
	return remaining, nil
}

// DecrementOptionStock takes quantity from one variation option.
func (r *productRepository) DecrementOptionStock(ctx context.Context, productID, group, value string, quantity int) (int, error) {
	query := `
		UPDATE product_variation_options
		SET stock_quantity = stock_quantity - $4,
			in_stock = stock_quantity - $4 > 0
		WHERE product_id = $1 AND group_name = $2 AND value = $3 AND stock_quantity >= $4
		RETURNING stock_quantity
	`

	var remaining int
	err := r.pool.QueryRow(ctx, query, productID, group, value, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.stockMiss(ctx,
				`SELECT 1 FROM product_variation_options WHERE product_id = $1 AND group_name = $2 AND value = $3`,
				productID, group, value)
		}
		r.logger.Error().Err(err).
			Str("product_id", productID).
			Str("group", group).
			Str("value", value).
			Msg("failed to decrement option stock")
		return 0, fmt.Errorf("failed to decrement option stock: %w", err)
	}
	return remaining, nil
}

// IncrementOptionStock puts quantity back on one variation option.
func (r *productRepository) IncrementOptionStock(ctx context.Context, productID, group, value string, quantity int) (int, error) {
	query := `
		UPDATE product_variation_options
		SET stock_quantity = stock_quantity + $4,
			in_stock = stock_quantity + $4 > 0
		WHERE product_id = $1 AND group_name = $2 AND value = $3
		RETURNING stock_quantity
	`

	var remaining int
	err := r.pool.QueryRow(ctx, query, productID, group, value, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to increment option stock")
		return 0, fmt.Errorf("failed to increment option stock: %w", err)
	}
	return remaining, nil
}

// stockMiss tells a missing row apart from a row with too little stock.
func (r *productRepository) stockMiss(ctx context.Context, existsQuery string, args ...any) error {
	var one int
	err := r.pool.QueryRow(ctx, existsQuery, args...).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrProductNotFound
	case err != nil:
		return fmt.Errorf("failed to check stock row: %w", err)
	default:
		r.logger.Warn().Interface("key", args).Msg("insufficient stock")
		return model.ErrInsufficientStock
	}
}

func (r *productRepository) collectProducts(rows pgx.Rows) ([]model.Product, error) {
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Image, &p.StockQuantity, &p.InStock, &p.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// attachVariations loads the option rows for products in one query.
func (r *productRepository) attachVariations(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, group_name, value, price_adjustment_cents, stock_quantity, in_stock
		FROM product_variation_options
		WHERE product_id = ANY($1)
		ORDER BY product_id, group_position, position
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query variation options")
		return fmt.Errorf("failed to query variation options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, group string
		var opt model.VariationOption
		if err := rows.Scan(&productID, &group, &opt.Value, &opt.PriceAdjustmentCents, &opt.StockQuantity, &opt.InStock); err != nil {
			return fmt.Errorf("failed to scan variation option: %w", err)
		}

		p := &products[index[productID]]
		n := len(p.Variations)
		if n == 0 || p.Variations[n-1].Name != group {
			p.Variations = append(p.Variations, model.VariationGroup{Name: group})
			n++
		}
		p.Variations[n-1].Options = append(p.Variations[n-1].Options, opt)
	}
	return rows.Err()
}
