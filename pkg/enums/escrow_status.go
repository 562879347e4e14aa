package enums

import "fmt"

// EscrowStatus tracks the escrow hold attached to a sub-order's funds.
type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusNone,
	EscrowStatusHeld,
	EscrowStatusReleased,
	EscrowStatusRefunded,
}

// String implements fmt.Stringer.
func (e EscrowStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowStatus.
func (e EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into an EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// CanTransitionTo reports whether the escrow state machine allows the edge.
// The only legal edges are none->held, held->released and held->refunded.
func (e EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	switch e {
	case EscrowStatusNone:
		return next == EscrowStatusHeld
	case EscrowStatusHeld:
		return next == EscrowStatusReleased || next == EscrowStatusRefunded
	default:
		return false
	}
}
