package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// SubOrderStatusHistory is an append-only record of every sub-order transition,
// written in the same transaction as the transition itself.
type SubOrderStatusHistory struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubOrderID    uuid.UUID            `gorm:"column:sub_order_id;type:uuid;not null;index"`
	FromStatus    enums.SubOrderStatus `gorm:"column:from_status;type:sub_order_status;not null"`
	ToStatus      enums.SubOrderStatus `gorm:"column:to_status;type:sub_order_status;not null"`
	ActorUserID   *uuid.UUID           `gorm:"column:actor_user_id;type:uuid"`
	ActorRole     *string              `gorm:"column:actor_role"`
	Note          *string              `gorm:"column:note"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}
