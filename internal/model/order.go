package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a state in the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusReturnCompleted OrderStatus = "return_completed"
)

// orderTransitions lists the admin- and customer-driven moves allowed from
// each status. return_requested -> shipped is used when the open return is
// rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered, OrderStatusReturnRequested},
	OrderStatusDelivered:       {OrderStatusCancelled},
	OrderStatusReturnRequested: {OrderStatusReturnCompleted, OrderStatusShipped},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusReturnRequested, OrderStatusReturnCompleted:
		return true
	}
	return false
}

// PaymentMethod is the customer's chosen payment option. Settlement happens
// outside this service.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodInvoice      PaymentMethod = "invoice"
)

// Address is a shipping or billing address.
type Address struct {
	Name       string `json:"name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// TrackingInfo is one shipment tracking entry.
type TrackingInfo struct {
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"trackingNumber"`
	URL            string    `json:"url,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

// Order is the immutable snapshot of a checkout. Only the status, tracking
// and guest fields change after creation.
type Order struct {
	ID                     uuid.UUID      `json:"id" db:"id"`
	OrderNumber            string         `json:"orderNumber" db:"order_number"`
	UserID                 *uuid.UUID     `json:"userId,omitempty" db:"user_id"`
	GuestEmail             string         `json:"guestEmail,omitempty" db:"guest_email"`
	GuestName              string         `json:"guestName,omitempty" db:"guest_name"`
	GuestEmailHash         string         `json:"-" db:"guest_email_hash"`
	Items                  []OrderItem    `json:"items"`
	ShippingAddress        Address        `json:"shippingAddress"`
	BillingAddress         *Address       `json:"billingAddress,omitempty"`
	PaymentMethod          PaymentMethod  `json:"paymentMethod" db:"payment_method"`
	SubtotalCents          int64          `json:"subtotalCents" db:"subtotal_cents"`
	ShippingCents          int64          `json:"shippingCents" db:"shipping_cents"`
	DiscountCents          int64          `json:"discountCents" db:"discount_cents"`
	DiscountID             *uuid.UUID     `json:"discountId,omitempty" db:"discount_id"`
	DiscountCode           string         `json:"discountCode,omitempty" db:"discount_code"`
	PointsDiscountCents    int64          `json:"pointsDiscountCents" db:"points_discount_cents"`
	TotalCents             int64          `json:"totalCents" db:"total_cents"`
	BonusPointsEarned      int64          `json:"bonusPointsEarned" db:"bonus_points_earned"`
	BonusPointsRedeemed    int64          `json:"bonusPointsRedeemed" db:"bonus_points_redeemed"`
	BonusPointsScheduledAt *time.Time     `json:"bonusPointsScheduledAt,omitempty" db:"bonus_points_scheduled_at"`
	Status                 OrderStatus    `json:"status" db:"status"`
	TrackingInfo           []TrackingInfo `json:"trackingInfo"`
	ShippedAt              *time.Time     `json:"shippedAt,omitempty" db:"shipped_at"`
	DeliveredAt            *time.Time     `json:"deliveredAt,omitempty" db:"delivered_at"`
	CreatedAt              time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time      `json:"updatedAt" db:"updated_at"`
}

// IsGuest reports whether the order has no registered owner.
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID != nil && *o.UserID == userID
}

// ContactEmail returns the address notifications go to.
func (o *Order) ContactEmail(userEmail string) string {
	if o.GuestEmail != "" {
		return o.GuestEmail
	}
	return userEmail
}

// HashEmail returns the hex SHA-256 of the normalised address. Anonymised
// guest orders keep it so one-time codes stay bound to the guest.
func HashEmail(email string) string {
	normalised := strings.ToLower(strings.TrimSpace(email))
	if normalised == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])
}

// OrderItem is a purchased line. UnitPriceCents already includes any
// variation price adjustments.
type OrderItem struct {
	ProductID      string            `json:"productId"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"unitPriceCents"`
	Quantity       int               `json:"quantity"`
	Variations     map[string]string `json:"variations,omitempty"`
	Image          string            `json:"image,omitempty"`
}

// LineTotalCents returns unit price times quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// OrderRequest represents the request payload for creating an order.
type OrderRequest struct {
	GuestEmail    string             `json:"guestEmail,omitempty" validate:"omitempty,email"`
	GuestName     string             `json:"guestName,omitempty"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Shipping      Address            `json:"shippingAddress" validate:"required"`
	Billing       *Address           `json:"billingAddress,omitempty" validate:"omitempty"`
	PaymentMethod PaymentMethod      `json:"paymentMethod" validate:"required,oneof=card paypal bank_transfer invoice"`
	DiscountCode  string             `json:"discountCode,omitempty" validate:"omitempty,max=64"`
	RedeemPoints  int64              `json:"redeemPoints,omitempty" validate:"gte=0"`
}

// OrderItemRequest represents a single cart line in an order request.
type OrderItemRequest struct {
	ProductID  string            `json:"productId" validate:"required"`
	Quantity   int               `json:"quantity" validate:"required,gt=0"`
	Variations map[string]string `json:"variations,omitempty"`
}

// StatusUpdateRequest is the admin payload for moving an order along.
type StatusUpdateRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

// TrackingRequest is the admin payload for adding shipment tracking.
type TrackingRequest struct {
	Carrier        string `json:"carrier" validate:"required"`
	TrackingNumber string `json:"trackingNumber" validate:"required"`
	URL            string `json:"url,omitempty" validate:"omitempty,url"`
}
