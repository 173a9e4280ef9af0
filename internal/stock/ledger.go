// Package stock reserves and releases inventory for order lines.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/rs/zerolog"
)

// Selection maps variation group name to the chosen option value.
type Selection map[string]string

// Reservation records what Reserve took so it can be released exactly.
type Reservation struct {
	ProductID string
	Quantity  int
	Variant   bool
	Options   []OptionRef
}

// OptionRef identifies one variation option.
type OptionRef struct {
	Group string
	Value string
}

// Ledger applies stock changes through conditional single-row updates.
type Ledger struct {
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewLedger creates a new stock ledger.
func NewLedger(products repository.ProductRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{
		products: products,
		logger:   logger.With().Str("component", "stock").Logger(),
	}
}

// Check verifies without mutating that product can satisfy quantity for the
// given selection. Products with variations need a value for every group.
func Check(product *model.Product, selection Selection, quantity int) error {
	if quantity <= 0 {
		return model.NewValidationError("quantity must be positive")
	}
	if !product.HasVariations() {
		if product.StockQuantity < quantity {
			return model.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d of %s left", product.StockQuantity, product.Name))
		}
		return nil
	}

	for _, group := range product.Variations {
		value, ok := selection[group.Name]
		if !ok || value == "" {
			return model.ErrVariationRequired.WithMessage(
				fmt.Sprintf("select a %s for %s", group.Name, product.Name))
		}
		opt := product.Option(group.Name, value)
		if opt == nil {
			return model.NewValidationError(
				fmt.Sprintf("%s is not a valid %s for %s", value, group.Name, product.Name))
		}
		if opt.StockQuantity < quantity {
			return model.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d of %s (%s %s) left", opt.StockQuantity, product.Name, group.Name, value))
		}
	}
	for name := range selection {
		if !hasGroup(product, name) {
			return model.NewValidationError(fmt.Sprintf("%s has no variation %s", product.Name, name))
		}
	}
	return nil
}

func hasGroup(product *model.Product, name string) bool {
	for _, g := range product.Variations {
		if g.Name == name {
			return true
		}
	}
	return false
}

// Reserve takes quantity for the product. For products with variations each
// selected option is decremented; if a later option fails the earlier ones are
// put back before the error is returned.
func (l *Ledger) Reserve(ctx context.Context, product *model.Product, selection Selection, quantity int) (*Reservation, error) {
	if err := Check(product, selection, quantity); err != nil {
		return nil, err
	}

	res := &Reservation{ProductID: product.ID, Quantity: quantity}

	if !product.HasVariations() {
		remaining, err := l.products.DecrementStock(ctx, product.ID, quantity)
		if err != nil {
			return nil, l.reserveError(product, err)
		}
		l.logger.Debug().Str("product_id", product.ID).Int("remaining", remaining).Msg("stock reserved")
		return res, nil
	}

	res.Variant = true
	groups := make([]string, 0, len(selection))
	for g := range selection {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		ref := OptionRef{Group: group, Value: selection[group]}
		if _, err := l.products.DecrementOptionStock(ctx, product.ID, ref.Group, ref.Value, quantity); err != nil {
			l.Release(ctx, res)
			return nil, l.reserveError(product, err)
		}
		res.Options = append(res.Options, ref)
	}

	l.logger.Debug().Str("product_id", product.ID).Int("options", len(res.Options)).Msg("option stock reserved")
	return res, nil
}

// Release puts back everything a reservation took. Failures are logged; a
// release must never mask the error that triggered it.
func (l *Ledger) Release(ctx context.Context, res *Reservation) {
	if res == nil {
		return
	}
	if !res.Variant {
		if _, err := l.products.IncrementStock(ctx, res.ProductID, res.Quantity); err != nil {
			l.logger.Error().Err(err).Str("product_id", res.ProductID).Msg("failed to release stock")
		}
		return
	}
	for _, ref := range res.Options {
		if _, err := l.products.IncrementOptionStock(ctx, res.ProductID, ref.Group, ref.Value, res.Quantity); err != nil {
			l.logger.Error().Err(err).
				Str("product_id", res.ProductID).
				Str("group", ref.Group).
				Str("value", ref.Value).
				Msg("failed to release option stock")
		}
	}
	res.Options = nil
}

func (l *Ledger) reserveError(product *model.Product, err error) error {
	if errors.Is(err, model.ErrInsufficientStock) {
		return model.ErrInsufficientStock.WithMessage(fmt.Sprintf("%s is no longer available in that quantity", product.Name))
	}
	return err
}
