package enums

import "fmt"

// AllocationScenario tags how a return shipping charge was split between
// the vendor and the platform.
type AllocationScenario string

const (
	AllocationScenarioRTOCOD             AllocationScenario = "rto_cod"
	AllocationScenarioRTOOnline          AllocationScenario = "rto_online"
	AllocationScenarioVendorFault        AllocationScenario = "vendor_fault"
	AllocationScenarioSizeIssueVendor    AllocationScenario = "size_issue_vendor"
	AllocationScenarioSizeIssueCustomer  AllocationScenario = "size_issue_customer"
	AllocationScenarioCustomerChangeMind AllocationScenario = "customer_changed_mind"
	AllocationScenarioOtherDefault       AllocationScenario = "other_default"
)

var validAllocationScenarios = []AllocationScenario{
	AllocationScenarioRTOCOD,
	AllocationScenarioRTOOnline,
	AllocationScenarioVendorFault,
	AllocationScenarioSizeIssueVendor,
	AllocationScenarioSizeIssueCustomer,
	AllocationScenarioCustomerChangeMind,
	AllocationScenarioOtherDefault,
}

// String implements fmt.Stringer.
func (a AllocationScenario) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AllocationScenario.
func (a AllocationScenario) IsValid() bool {
	for _, candidate := range validAllocationScenarios {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsShared reports whether the scenario splits the charge 50/50 instead of
// assigning it fully to the vendor.
func (a AllocationScenario) IsShared() bool {
	return a == AllocationScenarioSizeIssueCustomer || a == AllocationScenarioCustomerChangeMind
}

// ParseAllocationScenario converts raw input into an AllocationScenario.
func ParseAllocationScenario(value string) (AllocationScenario, error) {
	for _, candidate := range validAllocationScenarios {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation scenario %q", value)
}
