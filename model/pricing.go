package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// financialSummaryHeader marks the computed pricing section embedded in the
// deliverables text. The tax rate itself is never persisted; it is folded into
// the price and into this section exactly once.
const financialSummaryHeader = "--- Financial Summary ---"

// ComputeTotal returns the tax-inclusive total for a subtotal and a tax rate
// given in percent, rounded to two decimal places.
func ComputeTotal(subtotal, taxRate decimal.Decimal) decimal.Decimal {
	tax := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100))
	return subtotal.Add(tax).Round(2)
}

// HasFinancialSummary reports whether the deliverables text already embeds a
// financial summary section.
func HasFinancialSummary(deliverables string) bool {
	return strings.Contains(deliverables, financialSummaryHeader)
}

// AppendFinancialSummary appends the computed pricing section to the
// deliverables text. Callers are expected to check HasFinancialSummary first;
// the section is never added twice.
func AppendFinancialSummary(deliverables string, subtotal, taxRate decimal.Decimal, currency string) string {
	if HasFinancialSummary(deliverables) {
		return deliverables
	}

	total := ComputeTotal(subtotal, taxRate)
	tax := total.Sub(subtotal).Round(2)

	var b strings.Builder
	b.WriteString(strings.TrimRight(deliverables, "\n"))
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(financialSummaryHeader)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s %s\n", subtotal.Round(2).StringFixed(2), currency)
	fmt.Fprintf(&b, "Tax (%s%%): %s %s\n", taxRate.String(), tax.StringFixed(2), currency)
	fmt.Fprintf(&b, "Total: %s %s\n", total.StringFixed(2), currency)
	return b.String()
}

// MinorUnits converts a price to integer minor units (cents) for checkout.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
