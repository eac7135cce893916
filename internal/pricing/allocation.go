package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
)

// Keyword sets for free-text classification. Matching is substring-based on
// the lowercased reason text; the ambiguous default always favors the
// vendor, which is a known UX limitation rather than a bug.
var (
	sizeCustomerFaultKeywords = []string{
		"ordered wrong size",
		"wrong size ordered",
		"my mistake",
		"my fault",
		"i ordered",
		"chose the wrong",
		"selected wrong",
	}
	sizeVendorFaultKeywords = []string{
		"size chart",
		"different from described",
		"not as per",
		"mislabeled",
		"wrong size sent",
		"sent wrong size",
	}
	changedMindKeywords = []string{
		"changed my mind",
		"change of mind",
		"changed mind",
		"no longer need",
		"don't need",
		"do not need",
		"dont need",
		"found cheaper",
		"not interested",
	}
)

// ClassifySizeIssue decides whether a size-issue return is the vendor's
// fault from the buyer's free-text reason. Ambiguous text defaults to
// vendor fault.
func ClassifySizeIssue(reasonText string) enums.AllocationScenario {
	text := strings.ToLower(reasonText)
	for _, kw := range sizeVendorFaultKeywords {
		if strings.Contains(text, kw) {
			return enums.AllocationScenarioSizeIssueVendor
		}
	}
	for _, kw := range sizeCustomerFaultKeywords {
		if strings.Contains(text, kw) {
			return enums.AllocationScenarioSizeIssueCustomer
		}
	}
	return enums.AllocationScenarioSizeIssueVendor
}

// IsChangedMind reports whether free text indicates the buyer simply
// changed their mind.
func IsChangedMind(reasonText string) bool {
	text := strings.ToLower(reasonText)
	for _, kw := range changedMindKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ResolveAllocationScenario picks the charge-allocation scenario for a
// return. Resolution order: RTO shipments first, then vendor-fault
// categories, then free-text classification for size issues and the
// catch-all category.
func ResolveAllocationScenario(isReturning bool, method enums.PaymentMethod, reason enums.ReturnReason, reasonText string) enums.AllocationScenario {
	if isReturning {
		if method == enums.PaymentMethodCOD {
			return enums.AllocationScenarioRTOCOD
		}
		return enums.AllocationScenarioRTOOnline
	}
	if reason.IsVendorFault() {
		return enums.AllocationScenarioVendorFault
	}
	if reason == enums.ReturnReasonSizeIssue {
		return ClassifySizeIssue(reasonText)
	}
	if IsChangedMind(reasonText) {
		return enums.AllocationScenarioCustomerChangeMind
	}
	return enums.AllocationScenarioOtherDefault
}

// ChargeAllocation is the vendor/platform division of a return charge.
type ChargeAllocation struct {
	VendorCents   int64
	PlatformCents int64
}

// ComputeReturnChargeAllocation splits the return shipping charge per the
// scenario. Shared scenarios split 50/50 with the vendor share rounded
// half-up and the platform absorbing the remainder; all other scenarios
// charge the vendor in full. The parts always sum to the charge exactly.
func ComputeReturnChargeAllocation(chargeCents int64, scenario enums.AllocationScenario) (ChargeAllocation, error) {
	if chargeCents < 0 {
		return ChargeAllocation{}, pkgerrors.New(pkgerrors.CodeValidation, "return charge must be non-negative")
	}
	if !scenario.IsValid() {
		return ChargeAllocation{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown allocation scenario")
	}

	if !scenario.IsShared() {
		return ChargeAllocation{VendorCents: chargeCents, PlatformCents: 0}, nil
	}

	vendor := decimal.NewFromInt(chargeCents).
		Div(decimal.NewFromInt(2)).
		Round(0).
		IntPart()

	return ChargeAllocation{
		VendorCents:   vendor,
		PlatformCents: chargeCents - vendor,
	}, nil
}

// ReallocateProportionally re-derives the vendor/platform split when the
// carrier reports the actual freight cost, preserving the ratio of the
// original estimate and the exact-sum invariant.
func ReallocateProportionally(actualCents int64, previous ChargeAllocation) (ChargeAllocation, error) {
	if actualCents < 0 {
		return ChargeAllocation{}, pkgerrors.New(pkgerrors.CodeValidation, "actual freight must be non-negative")
	}
	previousTotal := previous.VendorCents + previous.PlatformCents
	if previousTotal <= 0 {
		// No prior basis to scale from; vendor keeps full responsibility.
		return ChargeAllocation{VendorCents: actualCents, PlatformCents: 0}, nil
	}

	vendor := decimal.NewFromInt(actualCents).
		Mul(decimal.NewFromInt(previous.VendorCents)).
		Div(decimal.NewFromInt(previousTotal)).
		Round(0).
		IntPart()

	return ChargeAllocation{
		VendorCents:   vendor,
		PlatformCents: actualCents - vendor,
	}, nil
}
