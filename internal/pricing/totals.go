package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
)

// DefaultCommissionRateBPS is the platform commission applied to the items
// subtotal of every seller order, in basis points.
const DefaultCommissionRateBPS = 700

// LineItem is the priced input for order total computation.
type LineItem struct {
	UnitPriceCents int64
	Quantity       int
}

// Totals is the monetary breakdown of a seller order.
type Totals struct {
	ItemsCents    int64
	ShippingCents int64
	TaxCents      int64
	DiscountCents int64
	TotalCents    int64
}

// ComputeOrderTotals sums line items and derives the grand total. The
// discount is clamped so the total never goes negative; the clamped value
// is reported back in the result.
func ComputeOrderTotals(items []LineItem, shippingCents, taxCents, discountCents int64) (Totals, error) {
	if shippingCents < 0 || taxCents < 0 || discountCents < 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping, tax and discount must be non-negative")
	}

	var itemsCents int64
	for _, item := range items {
		if item.UnitPriceCents < 0 || item.Quantity <= 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line items need a non-negative price and positive quantity")
		}
		itemsCents += item.UnitPriceCents * int64(item.Quantity)
	}

	gross := itemsCents + shippingCents + taxCents
	if discountCents > gross {
		discountCents = gross
	}

	return Totals{
		ItemsCents:    itemsCents,
		ShippingCents: shippingCents,
		TaxCents:      taxCents,
		DiscountCents: discountCents,
		TotalCents:    gross - discountCents,
	}, nil
}

// DistributeDiscount splits a cart-level discount across seller subtotals
// in proportion to each subtotal. Shares are floored and the rounding
// remainder lands on the largest subtotal, so the shares always sum to the
// discount. A discount above the combined subtotal is clamped to it.
func DistributeDiscount(subtotals []int64, discountCents int64) []int64 {
	shares := make([]int64, len(subtotals))
	if discountCents <= 0 {
		return shares
	}

	var total int64
	largest := 0
	for i, sub := range subtotals {
		if sub > 0 {
			total += sub
		}
		if sub > subtotals[largest] {
			largest = i
		}
	}
	if total == 0 {
		return shares
	}
	if discountCents > total {
		discountCents = total
	}

	var allocated int64
	for i, sub := range subtotals {
		if sub <= 0 {
			continue
		}
		shares[i] = discountCents * sub / total
		allocated += shares[i]
	}
	shares[largest] += discountCents - allocated
	return shares
}

// CommissionSplit is the platform/seller division of an items subtotal.
type CommissionSplit struct {
	CommissionCents     int64
	SellerEarningsCents int64
}

// ComputeCommission splits the items subtotal between the platform and the
// seller at the given rate. The commission is rounded half-up and the
// seller receives the remainder, so the parts always sum to the subtotal.
func ComputeCommission(itemsCents int64, rateBPS int) (CommissionSplit, error) {
	if itemsCents < 0 {
		return CommissionSplit{}, pkgerrors.New(pkgerrors.CodeValidation, "items subtotal must be non-negative")
	}
	if rateBPS < 0 || rateBPS > 10000 {
		return CommissionSplit{}, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 10000 basis points")
	}

	commission := decimal.NewFromInt(itemsCents).
		Mul(decimal.NewFromInt(int64(rateBPS))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()

	return CommissionSplit{
		CommissionCents:     commission,
		SellerEarningsCents: itemsCents - commission,
	}, nil
}
