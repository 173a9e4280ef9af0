package coupon

import (
	"context"
	"fmt"
	"time"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Customer identifies who a code is being applied for. Registered users are
// matched by ID and guests by email.
type Customer struct {
	UserID     *uuid.UUID
	GuestEmail string
}

// Validator checks discount codes. Validate has no side effects; the global
// use counter only moves through Consume.
type Validator struct {
	discounts repository.DiscountRepository
	orders    repository.OrderRepository
	now       func() time.Time
	logger    zerolog.Logger
}

// NewValidator creates a new discount validator.
func NewValidator(discounts repository.DiscountRepository, orders repository.OrderRepository, logger zerolog.Logger) *Validator {
	return &Validator{
		discounts: discounts,
		orders:    orders,
		now:       time.Now,
		logger:    logger.With().Str("component", "discount-validator").Logger(),
	}
}

// WithClock replaces the time source. Used by tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(ctx context.Context, code string, customer Customer, subtotalCents int64) (*model.DiscountResult, error) {
	normalised := normalise(code)
	if normalised == "" {
		return nil, model.ErrDiscountNotFound
	}

	d, err := v.discounts.GetByCode(ctx, normalised)
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}
	if d == nil {
		v.logger.Debug().Str("code", normalised).Msg("discount code not found")
		return nil, model.ErrDiscountNotFound
	}

	now := v.now()
	switch {
	case !d.Active:
		return nil, model.ErrDiscountInactive
	case d.StartsAt != nil && now.Before(*d.StartsAt):
		return nil, model.ErrDiscountNotStarted
	case d.EndsAt != nil && now.After(*d.EndsAt):
		return nil, model.ErrDiscountExpired
	case d.MaxGlobalUses != nil && d.GlobalUses >= *d.MaxGlobalUses:
		return nil, model.ErrDiscountExhausted
	}

	if d.OneTimeUse {
		used, err := v.orders.HasUsedDiscount(ctx, d.ID, customer.UserID, customer.GuestEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to check discount usage: %w", err)
		}
		if used {
			v.logger.Debug().Str("code", normalised).Msg("one-time discount already used")
			return nil, model.ErrDiscountUsed
		}
	}

	result := &model.DiscountResult{
		DiscountID:    d.ID,
		Code:          d.Code,
		DiscountCents: Amount(d, subtotalCents),
	}

	v.logger.Debug().
		Str("code", d.Code).
		Int64("subtotal_cents", subtotalCents).
		Int64("discount_cents", result.DiscountCents).
		Msg("discount code validated")

	return result, nil
}

// Amount computes the discount for subtotalCents. Percent codes take
// floor(subtotal*value/100), fixed codes floor(value). The result always
// leaves at least one cent payable.
func Amount(d *model.DiscountCode, subtotalCents int64) int64 {
	value := decimal.NewFromFloat(d.Value)

	var amount decimal.Decimal
	switch d.Type {
	case model.DiscountTypePercent:
		amount = decimal.NewFromInt(subtotalCents).Mul(value).Div(decimal.NewFromInt(100)).Floor()
	default:
		amount = value.Floor()
	}

	cents := amount.IntPart()
	if cents > subtotalCents-1 {
		cents = subtotalCents - 1
	}
	if cents < 0 {
		cents = 0
	}
	return cents
}

// Consume records one use of the code. It fails with ErrDiscountExhausted
// when another order took the last use since validation.
func (v *Validator) Consume(ctx context.Context, discountID uuid.UUID) error {
	ok, err := v.discounts.IncrementGlobalUses(ctx, discountID)
	if err != nil {
		return fmt.Errorf("failed to consume discount: %w", err)
	}
	if !ok {
		return model.ErrDiscountExhausted
	}
	return nil
}

// Release undoes Consume.
func (v *Validator) Release(ctx context.Context, discountID uuid.UUID) {
	if err := v.discounts.DecrementGlobalUses(ctx, discountID); err != nil {
		v.logger.Error().Err(err).Str("discount_id", discountID.String()).Msg("failed to release discount use")
	}
}
