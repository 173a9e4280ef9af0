package model

import "time"

// Product represents a catalogue item. When Variations is non-empty only the
// per-option stock is authoritative and the root quantity is ignored.
type Product struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	PriceCents    int64            `json:"priceCents" db:"price_cents"`
	Image         string           `json:"image,omitempty" db:"image"`
	StockQuantity int              `json:"stockQuantity" db:"stock_quantity"`
	InStock       bool             `json:"inStock" db:"in_stock"`
	Variations    []VariationGroup `json:"variations,omitempty"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
}

// VariationGroup is one selectable dimension of a product, e.g. "Size".
type VariationGroup struct {
	Name    string            `json:"name"`
	Options []VariationOption `json:"options"`
}

// VariationOption is a value inside a group with its own stock count.
type VariationOption struct {
	Value                string `json:"value"`
	PriceAdjustmentCents int64  `json:"priceAdjustmentCents"`
	StockQuantity        int    `json:"stockQuantity"`
	InStock              bool   `json:"inStock"`
}

// HasVariations reports whether option stock is authoritative for p.
func (p *Product) HasVariations() bool {
	return len(p.Variations) > 0
}

// Option returns a pointer to the option value within the named group.
func (p *Product) Option(group, value string) *VariationOption {
	for gi := range p.Variations {
		if p.Variations[gi].Name != group {
			continue
		}
		for oi := range p.Variations[gi].Options {
			if p.Variations[gi].Options[oi].Value == value {
				return &p.Variations[gi].Options[oi]
			}
		}
	}
	return nil
}
