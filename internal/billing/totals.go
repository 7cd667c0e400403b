// Package billing normalizes caller-supplied line items into canonical
// minor-unit totals. Inputs are defaulted, never rejected: a missing
// quantity means 1, a missing unit price means 0.
package billing

import (
	"math"

	"veridoc/internal/domain"
)

// MaxDescriptionLen bounds item descriptions before they reach the renderer.
const MaxDescriptionLen = 120

// Normalize computes each item's minor-unit amount (explicit override when
// present, otherwise quantity times unit price), the subtotal, tax (always
// zero: there is no tax engine), and the total. Rounding is half-to-nearest
// on each item so the subtotal is the exact sum of displayed amounts.
func Normalize(items []domain.LineItem, currency string) domain.Totals {
	totals := domain.Totals{
		Currency: currency,
		Items:    make([]domain.NormalizedItem, 0, len(items)),
	}
	for _, item := range items {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		var amount int64
		if item.AmountSet {
			amount = toMinor(item.Amount)
		} else {
			amount = toMinor(qty * item.UnitPrice)
		}
		totals.Items = append(totals.Items, domain.NormalizedItem{
			Description: truncate(item.Description, MaxDescriptionLen),
			Quantity:    qty,
			UnitPrice:   toMinor(item.UnitPrice),
			Amount:      amount,
		})
		totals.Subtotal += amount
	}
	totals.Tax = 0
	totals.Total = totals.Subtotal + totals.Tax
	return totals
}

// toMinor converts a major-unit value to minor units, rounding half away
// from zero so 0.005 becomes 1 cent.
func toMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
