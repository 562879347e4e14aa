package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// Store represents a vendor storefront selling through the marketplace.
type Store struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID         `gorm:"column:owner_user_id;type:uuid;not null"`
	Name        string            `gorm:"column:name;type:text;not null"`
	Slug        string            `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Description *string           `gorm:"column:description"`
	Status      enums.StoreStatus `gorm:"column:status;type:store_status;not null;default:'pending_review'"`
	ApprovedAt  *time.Time        `gorm:"column:approved_at"`
	SuspendedAt *time.Time        `gorm:"column:suspended_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
