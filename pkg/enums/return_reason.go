package enums

import "fmt"

// ReturnReason is the buyer-selected category for a return request.
type ReturnReason string

const (
	ReturnReasonWrongItem      ReturnReason = "wrong_item"
	ReturnReasonDefective      ReturnReason = "defective"
	ReturnReasonNotAsDescribed ReturnReason = "not_as_described"
	ReturnReasonSizeIssue      ReturnReason = "size_issue"
	ReturnReasonOther          ReturnReason = "other"
)

var validReturnReasons = []ReturnReason{
	ReturnReasonWrongItem,
	ReturnReasonDefective,
	ReturnReasonNotAsDescribed,
	ReturnReasonSizeIssue,
	ReturnReasonOther,
}

// String implements fmt.Stringer.
func (r ReturnReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnReason.
func (r ReturnReason) IsValid() bool {
	for _, candidate := range validReturnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsVendorFault reports whether the category alone pins the cost on the vendor.
func (r ReturnReason) IsVendorFault() bool {
	switch r {
	case ReturnReasonWrongItem, ReturnReasonDefective, ReturnReasonNotAsDescribed:
		return true
	default:
		return false
	}
}

// ParseReturnReason converts raw input into a ReturnReason.
func ParseReturnReason(value string) (ReturnReason, error) {
	for _, candidate := range validReturnReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return reason %q", value)
}
