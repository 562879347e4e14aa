package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// AuditLog is an append-only record of back-office mutations. Rows are written
// in the same transaction as the mutation they describe and never updated.
type AuditLog struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdminUserID uuid.UUID         `gorm:"column:admin_user_id;type:uuid;not null;index"`
	Action      enums.AuditAction `gorm:"column:action;type:audit_action;not null"`
	TargetType  string            `gorm:"column:target_type;type:text;not null"`
	TargetID    uuid.UUID         `gorm:"column:target_id;type:uuid;not null;index"`
	Detail      json.RawMessage   `gorm:"column:detail;type:jsonb"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
