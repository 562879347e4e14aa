package enums

import "fmt"

// AuditAction names a back-office mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionStoreApproved        AuditAction = "store_approved"
	AuditActionStoreSuspended       AuditAction = "store_suspended"
	AuditActionEscrowReleased       AuditAction = "escrow_released"
	AuditActionReturnApproved       AuditAction = "return_approved"
	AuditActionReturnRejected       AuditAction = "return_rejected"
	AuditActionRefundCompleted      AuditAction = "refund_completed"
	AuditActionAdminUserCreated     AuditAction = "admin_user_created"
	AuditActionAdminUserDeactivated AuditAction = "admin_user_deactivated"
	AuditActionWalletAdjusted       AuditAction = "wallet_adjusted"
)

var validAuditActions = []AuditAction{
	AuditActionStoreApproved,
	AuditActionStoreSuspended,
	AuditActionEscrowReleased,
	AuditActionReturnApproved,
	AuditActionReturnRejected,
	AuditActionRefundCompleted,
	AuditActionAdminUserCreated,
	AuditActionAdminUserDeactivated,
	AuditActionWalletAdjusted,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
