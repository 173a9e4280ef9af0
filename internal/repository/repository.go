package repository

import (
	"context"
	"errors"
	"time"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
)

// ErrDuplicateOrderNumber is returned by OrderRepository.Create when the
// order number is already taken.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

// ErrDuplicateGrant is returned by GrantRepository.Create when a grant for the
// same source reference already exists.
var ErrDuplicateGrant = errors.New("duplicate grant")

// ProductRepository defines the interface for product data access operations.
// Stock mutations are single-row conditional updates; they never take a
// quantity below zero and return model.ErrInsufficientStock instead.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when missing.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// Save creates or replaces a product together with its variation options.
	Save(ctx context.Context, product *model.Product) error

	// DecrementStock takes quantity from the product's root stock and
	// returns the new quantity.
	DecrementStock(ctx context.Context, productID string, quantity int) (int, error)

	// IncrementStock puts quantity back on the product's root stock.
	IncrementStock(ctx context.Context, productID string, quantity int) (int, error)

	// DecrementOptionStock takes quantity from one variation option.
	DecrementOptionStock(ctx context.Context, productID, group, value string, quantity int) (int, error)

	// IncrementOptionStock puts quantity back on one variation option.
	IncrementOptionStock(ctx context.Context, productID, group, value string, quantity int) (int, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a new order. Returns ErrDuplicateOrderNumber when the
	// order number is already in use.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ExistsByNumber reports whether an order number is already taken.
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)

	// HasUsedDiscount reports whether the customer already has an order that
	// references discountID. Guests are matched by email.
	HasUsedDiscount(ctx context.Context, discountID uuid.UUID, userID *uuid.UUID, guestEmail string) (bool, error)

	// Update persists the mutable part of an order: status, timestamps,
	// tracking, ownership, guest data and the grant schedule.
	Update(ctx context.Context, order *model.Order) error

	// ListGuestByEmail returns guest orders placed with email.
	ListGuestByEmail(ctx context.Context, email string) ([]model.Order, error)
}

// DiscountRepository defines data access for discount codes.
type DiscountRepository interface {
	// GetByCode looks a code up by its normalised text. Returns nil when missing.
	GetByCode(ctx context.Context, code string) (*model.DiscountCode, error)

	// IncrementGlobalUses adds one use unless the cap is reached. Reports
	// false when the cap blocked the increment.
	IncrementGlobalUses(ctx context.Context, id uuid.UUID) (bool, error)

	// DecrementGlobalUses undoes one IncrementGlobalUses.
	DecrementGlobalUses(ctx context.Context, id uuid.UUID) error

	// Upsert creates a code or replaces the definition of an existing one
	// with the same text, keeping its usage counter.
	Upsert(ctx context.Context, code *model.DiscountCode) error
}

// UserRepository defines data access for customer point balances.
type UserRepository interface {
	// GetByID returns nil when the user is unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetByEmail returns nil when no account uses email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Upsert records the identity provider's view of a user, leaving the
	// points balance untouched.
	Upsert(ctx context.Context, user *model.User) error

	// DebitPoints subtracts points when the balance covers them and returns
	// the new balance, or model.ErrInsufficientPoints.
	DebitPoints(ctx context.Context, id uuid.UUID, points int64) (int64, error)

	// RefundPoints gives back points taken by DebitPoints.
	RefundPoints(ctx context.Context, id uuid.UUID, points int64) (int64, error)
}

// GrantRepository defines data access for scheduled points grants.
type GrantRepository interface {
	// Create inserts a grant. Returns ErrDuplicateGrant when the source
	// reference already has one.
	Create(ctx context.Context, grant *model.Grant) error

	// GetByID returns nil when the grant is unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Grant, error)

	// FindBySource returns the grant created for a source reference, or nil.
	FindBySource(ctx context.Context, source model.GrantSource, sourceRef string) (*model.Grant, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Grant, error)

	// ListDue returns uncredited grants scheduled at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Grant, error)

	// Credit atomically marks an uncredited grant as credited and adds its
	// points to the owner's balance. Reports false when another caller got
	// there first.
	Credit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// Cancel zeroes an uncredited grant and marks it credited.
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// Reschedule moves an uncredited grant's eligibility time.
	Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error)

	// SetPoints changes the award of an uncredited grant.
	SetPoints(ctx context.Context, id uuid.UUID, points int64) (bool, error)
}

// ReturnRepository defines data access for return requests.
type ReturnRepository interface {
	Create(ctx context.Context, ret *model.ReturnRequest) error

	// GetByID returns nil when the return is unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)

	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error)

	// Update persists status, notes and per-item acceptance.
	Update(ctx context.Context, ret *model.ReturnRequest) error
}

// Sequencer hands out the year-scoped order sequence.
type Sequencer interface {
	// Next returns the next value for year, starting at 1.
	Next(ctx context.Context, year int) (int64, error)
}
