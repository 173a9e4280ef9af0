package service

import (
	"context"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
)

// ProductService defines operations for product management.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// Save creates or replaces a catalogue entry.
	Save(ctx context.Context, product *model.Product) (*model.Product, error)
}

// OrderService defines operations for the order lifecycle. A nil caller is a
// guest.
type OrderService interface {
	// CreateOrder turns a cart into a pending order, reserving stock,
	// redeeming points and consuming the discount code.
	CreateOrder(ctx context.Context, caller *model.Identity, req *model.OrderRequest) (*model.Order, error)

	// GetByID returns an order visible to the caller.
	GetByID(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Order, error)

	// CheckDiscount previews a code against a subtotal without consuming it.
	CheckDiscount(ctx context.Context, caller *model.Identity, req *model.DiscountCheckRequest) (*model.DiscountResult, error)

	// UpdateStatus moves an order along its lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)

	// AddTracking appends shipment tracking and notifies the customer.
	AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.Order, error)

	// AnonymizeGuest scrubs personal data from a guest order.
	AnonymizeGuest(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// LinkGuestOrders attaches guest orders placed with the caller's verified
	// email to their account.
	LinkGuestOrders(ctx context.Context, caller *model.Identity) (int, error)
}

// ReturnService defines operations for partial returns.
type ReturnService interface {
	// RequestReturn opens a return against a shipped order.
	RequestReturn(ctx context.Context, caller *model.Identity, orderID uuid.UUID, req *model.ReturnRequestInput) (*model.ReturnRequest, error)

	// ListReturns lists the returns of an order visible to the caller.
	ListReturns(ctx context.Context, caller *model.Identity, orderID uuid.UUID) ([]model.ReturnRequest, error)

	// SetReturnStatus moves an open return to processing or rejected.
	SetReturnStatus(ctx context.Context, id uuid.UUID, status model.ReturnStatus) (*model.ReturnRequest, error)

	// CompleteReturn accepts the listed items and issues the credit note.
	CompleteReturn(ctx context.Context, id uuid.UUID, acceptedItems []int) (*model.CreditNote, error)
}

// PointsService defines the loyalty operations exposed over HTTP.
type PointsService interface {
	CreditEligible(ctx context.Context) (model.CreditSummary, error)
	Overview(ctx context.Context, userID uuid.UUID) (*model.PointsOverview, error)
	GrantForReview(ctx context.Context, userID uuid.UUID, reviewID string) (*model.Grant, error)
	GrantForAdmin(ctx context.Context, userID uuid.UUID, points int64, reason string) (*model.Grant, error)
	CancelGrant(ctx context.Context, id uuid.UUID) error
	ExtendGrant(ctx context.Context, id uuid.UUID, days int) (*model.Grant, error)
}
