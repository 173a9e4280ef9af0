package service

import (
	"context"
	"fmt"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(productRepo repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves all products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	products, err := s.productRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (s *productService) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to get products by IDs")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("requested", len(ids)).
		Int("found", len(products)).
		Msg("retrieved products by IDs")

	return products, nil
}

// Save validates and stores a product. InStock flags are derived from the
// quantities.
func (s *productService) Save(ctx context.Context, product *model.Product) (*model.Product, error) {
	if product == nil || product.ID == "" || product.Name == "" {
		return nil, model.NewValidationError("product id and name are required")
	}
	if product.PriceCents < 0 || product.StockQuantity < 0 {
		return nil, model.NewValidationError("price and stock must not be negative")
	}

	groups := make(map[string]bool, len(product.Variations))
	for gi := range product.Variations {
		group := &product.Variations[gi]
		if group.Name == "" || len(group.Options) == 0 {
			return nil, model.NewValidationError("every variation group needs a name and at least one option")
		}
		if groups[group.Name] {
			return nil, model.NewValidationError(fmt.Sprintf("duplicate variation group %s", group.Name))
		}
		groups[group.Name] = true

		values := make(map[string]bool, len(group.Options))
		for oi := range group.Options {
			opt := &group.Options[oi]
			if opt.Value == "" || values[opt.Value] {
				return nil, model.NewValidationError(fmt.Sprintf("invalid or duplicate option in %s", group.Name))
			}
			if opt.StockQuantity < 0 {
				return nil, model.NewValidationError("option stock must not be negative")
			}
			values[opt.Value] = true
			opt.InStock = opt.StockQuantity > 0
		}
	}
	product.InStock = product.StockQuantity > 0

	if err := s.productRepo.Save(ctx, product); err != nil {
		s.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to save product")
		return nil, fmt.Errorf("failed to save product: %w", err)
	}

	s.logger.Info().
		Str("product_id", product.ID).
		Int("variation_groups", len(product.Variations)).
		Msg("product saved")

	return product, nil
}
