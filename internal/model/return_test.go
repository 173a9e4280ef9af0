package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSignature(t *testing.T) {
	tests := []struct {
		name       string
		productID  string
		variations map[string]string
		expected   string
	}{
		{
			name:      "No variations",
			productID: "P001",
			expected:  "P001",
		},
		{
			name:       "Single variation",
			productID:  "P001",
			variations: map[string]string{"Size": "M"},
			expected:   "P001|Size:M",
		},
		{
			name:       "Variations are sorted",
			productID:  "P001",
			variations: map[string]string{"Size": "M", "Color": "Red"},
			expected:   "P001|Color:Red,Size:M",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LineSignature(tt.productID, tt.variations))
		})
	}
}

func TestOrderStatus_CanTransition(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusProcessing))
	assert.True(t, OrderStatusShipped.CanTransition(OrderStatusReturnRequested))
	assert.True(t, OrderStatusReturnRequested.CanTransition(OrderStatusReturnCompleted))
	assert.False(t, OrderStatusPending.CanTransition(OrderStatusDelivered))
	assert.False(t, OrderStatusReturnCompleted.CanTransition(OrderStatusShipped))
	assert.False(t, OrderStatusCancelled.CanTransition(OrderStatusPending))
}

func TestDomainError_Is(t *testing.T) {
	specific := ErrDiscountExpired.WithMessage("code SUMMER ended yesterday")

	assert.ErrorIs(t, specific, ErrDiscountExpired)
	assert.NotErrorIs(t, specific, ErrDiscountInactive)
	assert.Equal(t, KindDiscountInvalid, KindOf(specific))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))
}
