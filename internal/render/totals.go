package render

import (
	"fmt"

	"invoice-service/internal/models"
)

// Totals holds the derived monetary summary for one render. Never persisted;
// recomputed on every render.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Shipping       float64
	Total          float64
}

// ComputeTotals derives the totals block from the reconciled rows and the
// invoice-level discount/tax/shipping fields. Internal arithmetic stays in
// floating point; rounding happens only at display formatting.
func ComputeTotals(rows []Row, inv *models.Invoice, order *models.Order) Totals {
	var t Totals

	for _, row := range rows {
		v := row.LineTotal
		if !isFinite(v) {
			// a poisoned line contributes nothing rather than propagating NaN
			continue
		}
		t.Subtotal += v
	}

	if inv != nil {
		switch inv.DiscountType {
		case models.DiscountTypePercent:
			t.DiscountAmount = t.Subtotal * inv.DiscountValue / 100
		case models.DiscountTypeAmount:
			t.DiscountAmount = inv.DiscountValue
		}
	}

	taxableBase := t.Subtotal - t.DiscountAmount
	if taxableBase < 0 {
		taxableBase = 0
	}
	if inv != nil {
		t.TaxAmount = taxableBase * inv.TaxRate / 100
	}

	t.Shipping = resolveShipping(inv, order)

	t.Total = taxableBase + t.TaxAmount + t.Shipping
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}

// resolveShipping returns the first populated value in the documented
// preference order: the invoice's explicit shipping amount, then the linked
// order's shipping cost, then the carrier's selected-service amount. The
// order of this list is the single source of truth for shipping precedence.
func resolveShipping(inv *models.Invoice, order *models.Order) float64 {
	var candidates []*float64
	if inv != nil {
		candidates = append(candidates, inv.ShippingAmount)
	}
	if order != nil {
		candidates = append(candidates, order.ShippingCost, order.SelectedServiceAmount)
	}
	for _, c := range candidates {
		if c != nil && isFinite(*c) {
			return *c
		}
	}
	return 0
}

// FormatAmount renders a monetary value for display: two decimal places with
// a leading currency sign. This is the only place rounding happens.
func FormatAmount(v float64) string {
	if !isFinite(v) {
		v = 0
	}
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
