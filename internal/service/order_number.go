package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"
)

const (
	orderNumberPrefix   = "3DS"
	orderNumberAttempts = 5
)

// OrderNumbers generates order numbers of the form 3DS-YY###-RRRR: two-digit
// year, the year's sequence modulo 1000 and a random four-digit suffix.
type OrderNumbers struct {
	seq    repository.Sequencer
	orders repository.OrderRepository
	now    func() time.Time
	suffix func() (int64, error)
}

// NewOrderNumbers creates a new order number generator.
func NewOrderNumbers(seq repository.Sequencer, orders repository.OrderRepository) *OrderNumbers {
	return &OrderNumbers{
		seq:    seq,
		orders: orders,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

func randomSuffix() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// Format renders an order number.
func Format(year int, seq, suffix int64) string {
	return fmt.Sprintf("%s-%02d%03d-%04d", orderNumberPrefix, year%100, seq%1000, suffix)
}

// Next returns a number not yet used by any stored order. It gives up with
// model.ErrOrderNumberTaken after five collisions.
func (g *OrderNumbers) Next(ctx context.Context) (string, error) {
	year := g.now().Year()
	seq, err := g.seq.Next(ctx, year)
	if err != nil {
		return "", fmt.Errorf("failed to advance order sequence: %w", err)
	}

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		suffix, err := g.suffix()
		if err != nil {
			return "", fmt.Errorf("failed to generate order number suffix: %w", err)
		}

		number := Format(year, seq, suffix)
		exists, err := g.orders.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check order number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", model.ErrOrderNumberTaken
}
