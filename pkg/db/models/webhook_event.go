package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent stores every gateway webhook delivery keyed by the gateway's
// event id, which is what makes payment processing idempotent.
type WebhookEvent struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayEventID string          `gorm:"column:gateway_event_id;type:text;not null;uniqueIndex"`
	EventType      string          `gorm:"column:event_type;type:text;not null"`
	Payload        json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	ProcessedAt    *time.Time      `gorm:"column:processed_at"`
	ProcessingErr  *string         `gorm:"column:processing_error"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
