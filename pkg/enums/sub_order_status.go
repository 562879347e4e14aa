package enums

import "fmt"

// SubOrderStatus tracks the delivery lifecycle of a per-store sub-order.
type SubOrderStatus string

const (
	SubOrderStatusPending    SubOrderStatus = "pending"
	SubOrderStatusProcessing SubOrderStatus = "processing"
	SubOrderStatusShipped    SubOrderStatus = "shipped"
	SubOrderStatusDelivered  SubOrderStatus = "delivered"
	SubOrderStatusCanceled   SubOrderStatus = "canceled"
)

var validSubOrderStatuses = []SubOrderStatus{
	SubOrderStatusPending,
	SubOrderStatusProcessing,
	SubOrderStatusShipped,
	SubOrderStatusDelivered,
	SubOrderStatusCanceled,
}

// String implements fmt.Stringer.
func (s SubOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubOrderStatus.
func (s SubOrderStatus) IsValid() bool {
	for _, candidate := range validSubOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubOrderStatus converts raw input into a SubOrderStatus.
func ParseSubOrderStatus(value string) (SubOrderStatus, error) {
	for _, candidate := range validSubOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sub-order status %q", value)
}

// CanTransitionTo reports whether the delivery state machine allows the edge.
func (s SubOrderStatus) CanTransitionTo(next SubOrderStatus) bool {
	switch s {
	case SubOrderStatusPending:
		return next == SubOrderStatusProcessing || next == SubOrderStatusCanceled
	case SubOrderStatusProcessing:
		return next == SubOrderStatusShipped || next == SubOrderStatusCanceled
	case SubOrderStatusShipped:
		return next == SubOrderStatusDelivered
	default:
		return false
	}
}
