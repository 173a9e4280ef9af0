// Package points keeps the loyalty ledger: accrual on orders, scheduled
// grants, delayed crediting and tiered redemption at checkout.
package points

import (
	"github.com/shopspring/decimal"
)

// Tier is one redemption step.
type Tier struct {
	Points int64 `json:"points"`
	Cents  int64 `json:"cents"`
}

// Tiers are ordered by ascending point cost.
var Tiers = []Tier{
	{Points: 1000, Cents: 500},
	{Points: 2000, Cents: 1000},
	{Points: 3000, Cents: 2000},
	{Points: 4000, Cents: 3500},
	{Points: 5000, Cents: 5000},
}

var (
	accrualRate = decimal.RequireFromString("3.5")
	hundred     = decimal.NewFromInt(100)
)

// Accrue returns the points a registered customer earns for subtotalCents:
// floor(subtotal in whole currency units * 3.5). Guests earn nothing.
func Accrue(subtotalCents int64, registered bool) int64 {
	if !registered || subtotalCents <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotalCents).Div(hundred).Mul(accrualRate).Floor().IntPart()
}

// SelectTier picks the highest tier that costs no more than requested and
// leaves at least one cent of payableCents. ok is false when none qualifies.
func SelectTier(requested, payableCents int64) (tier Tier, ok bool) {
	for i := len(Tiers) - 1; i >= 0; i-- {
		t := Tiers[i]
		if t.Points <= requested && t.Cents <= payableCents-1 {
			return t, true
		}
	}
	return Tier{}, false
}
