package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/db/models"
)

// WebhookEventRepository persists gateway webhook deliveries. The unique
// gateway event id is the durable idempotency key for ProcessOrder.
type WebhookEventRepository interface {
	WithTx(tx *gorm.DB) WebhookEventRepository
	InsertIfNew(ctx context.Context, gatewayEventID, eventType string, payload json.RawMessage) (*models.WebhookEvent, bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processingErr *string) error
}

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository builds the webhook event store.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) WithTx(tx *gorm.DB) WebhookEventRepository {
	if tx == nil {
		return r
	}
	return &webhookEventRepository{db: tx}
}

// InsertIfNew inserts the delivery row. The second return value is false when
// the gateway event id was already recorded.
func (r *webhookEventRepository) InsertIfNew(ctx context.Context, gatewayEventID, eventType string, payload json.RawMessage) (*models.WebhookEvent, bool, error) {
	row := &models.WebhookEvent{
		GatewayEventID: gatewayEventID,
		EventType:      eventType,
		Payload:        payload,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, false, nil
		}
		return nil, false, err
	}
	return row, true, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processingErr *string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_at":     now,
			"processing_error": processingErr,
		}).Error
}
