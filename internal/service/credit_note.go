package service

import (
	"time"

	"kart-ledger/internal/model"

	"github.com/shopspring/decimal"
)

// ComputeCreditNote prorates the order's discount and points discount over
// the accepted items of ret. Each line's share is its original value over the
// order subtotal; per-unit amounts are rounded independently. The order
// itself is not modified.
func ComputeCreditNote(order *model.Order, ret *model.ReturnRequest, issuedAt time.Time) *model.CreditNote {
	note := &model.CreditNote{
		ReturnID:    ret.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Lines:       []model.CreditNoteLine{},
		IssuedAt:    issuedAt,
	}

	for _, item := range ret.Items {
		if !item.Accepted || item.Quantity <= 0 {
			continue
		}

		lineTotal := item.UnitPriceCents * int64(item.Quantity)
		discountPerUnit := perUnitShare(order.DiscountCents, lineTotal, order.SubtotalCents, item.Quantity)
		pointsPerUnit := perUnitShare(order.PointsDiscountCents, lineTotal, order.SubtotalCents, item.Quantity)
		refundPerUnit := max(item.UnitPriceCents-discountPerUnit-pointsPerUnit, 0)

		line := model.CreditNoteLine{
			ProductID:                  item.ProductID,
			Name:                       item.Name,
			Variations:                 item.Variations,
			Quantity:                   item.Quantity,
			UnitPriceCents:             item.UnitPriceCents,
			DiscountPerUnitCents:       discountPerUnit,
			PointsDiscountPerUnitCents: pointsPerUnit,
			RefundPerUnitCents:         refundPerUnit,
			LineRefundCents:            refundPerUnit * int64(item.Quantity),
		}
		note.Lines = append(note.Lines, line)
		note.TotalRefundCents += line.LineRefundCents
	}
	return note
}

// perUnitShare returns round(concession * lineTotal / subtotal / quantity).
func perUnitShare(concessionCents, lineTotalCents, subtotalCents int64, quantity int) int64 {
	if concessionCents <= 0 || subtotalCents <= 0 || quantity <= 0 {
		return 0
	}
	prorated := decimal.NewFromInt(concessionCents).
		Mul(decimal.NewFromInt(lineTotalCents)).
		Div(decimal.NewFromInt(subtotalCents))
	return prorated.Div(decimal.NewFromInt(int64(quantity))).Round(0).IntPart()
}
