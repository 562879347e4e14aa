package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// Product is a purchasable listing owned by a store.
type Product struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID       uuid.UUID      `gorm:"column:store_id;type:uuid;not null;index"`
	Name          string         `gorm:"column:name;type:text;not null"`
	Slug          string         `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Description   *string        `gorm:"column:description"`
	PriceCents    int64          `gorm:"column:price_cents;not null"`
	Currency      enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	StockQuantity int            `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
