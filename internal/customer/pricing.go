package customer

import (
	"github.com/shopspring/decimal"
)

// TaxRate is applied to the subtotal for display.
var TaxRate = decimal.RequireFromString("0.10")

var centsPerUnit = decimal.NewFromInt(100)

// Quote is a price breakdown for display. The backend computes the
// authoritative total when the order is placed; a Quote is never sent.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// QuoteLines prices the cart lines from their menu snapshots.
func QuoteLines(lines []Line) Quote {
	var cents int64
	for _, l := range lines {
		cents += l.Item.PriceCents * int64(l.Qty)
	}
	subtotal := decimal.NewFromInt(cents).Div(centsPerUnit)
	tax := subtotal.Mul(TaxRate).Round(2)
	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// FormatMoney renders an amount as dollars with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatCents renders an amount in cents as dollars with two decimals.
func FormatCents(cents int64) string {
	return FormatMoney(decimal.NewFromInt(cents).Div(centsPerUnit))
}
