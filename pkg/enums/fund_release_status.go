package enums

import "fmt"

// FundReleaseStatus tracks a per-store settlement record from hold to payout.
type FundReleaseStatus string

const (
	FundReleaseStatusHeld     FundReleaseStatus = "held"
	FundReleaseStatusReleased FundReleaseStatus = "released"
	FundReleaseStatusRefunded FundReleaseStatus = "refunded"
)

var validFundReleaseStatuses = []FundReleaseStatus{
	FundReleaseStatusHeld,
	FundReleaseStatusReleased,
	FundReleaseStatusRefunded,
}

// String implements fmt.Stringer.
func (f FundReleaseStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FundReleaseStatus.
func (f FundReleaseStatus) IsValid() bool {
	for _, candidate := range validFundReleaseStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFundReleaseStatus converts raw input into a FundReleaseStatus.
func ParseFundReleaseStatus(value string) (FundReleaseStatus, error) {
	for _, candidate := range validFundReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fund release status %q", value)
}
