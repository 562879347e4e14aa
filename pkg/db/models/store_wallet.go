package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// StoreWallet keeps the per-store pending and available balances. Every balance
// mutation happens alongside a WalletEntry in the same transaction.
type StoreWallet struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID               uuid.UUID      `gorm:"column:store_id;type:uuid;not null;uniqueIndex"`
	Currency              enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	PendingBalanceCents   int64          `gorm:"column:pending_balance_cents;not null;default:0"`
	AvailableBalanceCents int64          `gorm:"column:available_balance_cents;not null;default:0"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
