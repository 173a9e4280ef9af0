// Package coupon validates discount codes against a cart and imports code
// definitions from gzipped batch files.
package coupon

import (
	"context"

	"kart-ledger/internal/model"
)

// Batch is a set of discount code definitions keyed by normalised code.
type Batch interface {
	// Get returns the definition for code.
	Get(code string) (model.DiscountCode, bool)

	// Codes returns the definitions in file order.
	Codes() []model.DiscountCode

	// Size returns the number of codes in the batch.
	Size() int
}

// Loader defines the interface for loading discount batch files.
type Loader interface {
	// Load reads a gzipped CSV batch and returns its definitions.
	Load(ctx context.Context, filePath string) (Batch, error)
}
