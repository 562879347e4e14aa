package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// WalletEntry is the append-only journal row behind every wallet balance change.
type WalletEntry struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID             uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;index"`
	SubOrderID           *uuid.UUID            `gorm:"column:sub_order_id;type:uuid;index"`
	EntryType            enums.WalletEntryType `gorm:"column:entry_type;type:wallet_entry_type;not null"`
	AmountCents          int64                 `gorm:"column:amount_cents;not null"`
	PendingAfterCents    int64                 `gorm:"column:pending_after_cents;not null"`
	AvailableAfterCents  int64                 `gorm:"column:available_after_cents;not null"`
	Memo                 *string               `gorm:"column:memo"`
	CreatedByAdminUserID *uuid.UUID            `gorm:"column:created_by_admin_user_id;type:uuid"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
}
