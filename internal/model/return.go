package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReturnStatus is a state of a return request.
type ReturnStatus string

const (
	ReturnStatusReceived   ReturnStatus = "received"
	ReturnStatusProcessing ReturnStatus = "processing"
	ReturnStatusCompleted  ReturnStatus = "completed"
	ReturnStatusRejected   ReturnStatus = "rejected"
)

// Open reports whether the request still reserves returnable quantity.
func (s ReturnStatus) Open() bool {
	return s == ReturnStatusReceived || s == ReturnStatusProcessing
}

// ReturnItem is one requested line of a return.
type ReturnItem struct {
	ProductID      string            `json:"productId"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"unitPriceCents"`
	Quantity       int               `json:"quantity"`
	Variations     map[string]string `json:"variations,omitempty"`
	Accepted       bool              `json:"accepted"`
}

// Signature returns the matching key of the item.
func (i ReturnItem) Signature() string {
	return LineSignature(i.ProductID, i.Variations)
}

// ReturnRequest is a customer's partial return against a shipped order.
type ReturnRequest struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	OrderID     uuid.UUID    `json:"orderId" db:"order_id"`
	OrderNumber string       `json:"orderNumber" db:"order_number"`
	UserID      *uuid.UUID   `json:"userId,omitempty" db:"user_id"`
	Items       []ReturnItem `json:"items"`
	Status      ReturnStatus `json:"status" db:"status"`
	Notes       string       `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// ReturnItemInput is one line the customer wants to send back.
type ReturnItemInput struct {
	ProductID  string            `json:"productId" validate:"required"`
	Quantity   int               `json:"quantity" validate:"gt=0"`
	Variations map[string]string `json:"variations,omitempty"`
}

// ReturnRequestInput is the customer payload for a return.
type ReturnRequestInput struct {
	Items []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
	Notes string            `json:"notes,omitempty" validate:"max=2000"`
}

// ReturnStatusRequest is the admin payload for moving a return along
// without completing it.
type ReturnStatusRequest struct {
	Status ReturnStatus `json:"status" validate:"required,oneof=processing rejected"`
}

// CompleteReturnRequest lists the indexes of the items the admin accepts.
type CompleteReturnRequest struct {
	AcceptedItems []int `json:"acceptedItems"`
}

// CreditNoteLine is one accepted item with its prorated share of every
// order-level concession.
type CreditNoteLine struct {
	ProductID                  string            `json:"productId"`
	Name                       string            `json:"name"`
	Variations                 map[string]string `json:"variations,omitempty"`
	Quantity                   int               `json:"quantity"`
	UnitPriceCents             int64             `json:"unitPriceCents"`
	DiscountPerUnitCents       int64             `json:"discountPerUnitCents"`
	PointsDiscountPerUnitCents int64             `json:"pointsDiscountPerUnitCents"`
	RefundPerUnitCents         int64             `json:"refundPerUnitCents"`
	LineRefundCents            int64             `json:"lineRefundCents"`
}

// CreditNote is the numeric content handed to the document generator.
type CreditNote struct {
	ReturnID         uuid.UUID        `json:"returnId"`
	OrderID          uuid.UUID        `json:"orderId"`
	OrderNumber      string           `json:"orderNumber"`
	Lines            []CreditNoteLine `json:"lines"`
	TotalRefundCents int64            `json:"totalRefundCents"`
	IssuedAt         time.Time        `json:"issuedAt"`
}

// LineSignature builds the canonical key of a product reference and its
// variation selections, sorted by group name.
func LineSignature(productID string, variations map[string]string) string {
	if len(variations) == 0 {
		return productID
	}
	pairs := make([]string, 0, len(variations))
	for k, v := range variations {
		pairs = append(pairs, k+":"+v)
	}
	sort.Strings(pairs)
	return productID + "|" + strings.Join(pairs, ",")
}
