package model

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType selects how Value is interpreted.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

// DiscountCode is a redeemable code. One-time use is tracked per user by the
// existence of an order referencing ID, never by the Code text.
type DiscountCode struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	Type          DiscountType `json:"type" db:"type"`
	Value         float64      `json:"value" db:"value"`
	StartsAt      *time.Time   `json:"startsAt,omitempty" db:"starts_at"`
	EndsAt        *time.Time   `json:"endsAt,omitempty" db:"ends_at"`
	Active        bool         `json:"active" db:"active"`
	OneTimeUse    bool         `json:"oneTimeUse" db:"one_time_use"`
	MaxGlobalUses *int         `json:"maxGlobalUses,omitempty" db:"max_global_uses"`
	GlobalUses    int          `json:"globalUses" db:"global_uses"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
}

// DiscountResult is the outcome of a successful validation.
type DiscountResult struct {
	DiscountID    uuid.UUID `json:"discountId"`
	Code          string    `json:"code"`
	DiscountCents int64     `json:"discountCents"`
}

// DiscountCheckRequest is the payload for previewing a code against a cart.
type DiscountCheckRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int64  `json:"subtotalCents" validate:"gt=0"`
	GuestEmail    string `json:"guestEmail,omitempty" validate:"omitempty,email"`
}
