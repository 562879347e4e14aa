package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
	"github.com/bazario/backend/pkg/pagination"
)

const escrowReminderBatchSize = 200

type eligibleReleaseLister interface {
	ListEligible(ctx context.Context, asOf time.Time, params pagination.Params) ([]releases.EligibleSubOrder, error)
}

// EscrowReminderJobParams configure the escrow release reminder sweep.
type EscrowReminderJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Releases eligibleReleaseLister
	Outbox   outboxEmitter
}

// NewEscrowReminderJob builds the cron job that nudges admins about
// sub-orders whose escrow is ready to release.
func NewEscrowReminderJob(params EscrowReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Releases == nil {
		return nil, fmt.Errorf("fund release repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &escrowReminderJob{
		logg:     params.Logger,
		db:       params.DB,
		releases: params.Releases,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

type escrowReminderJob struct {
	logg     *logger.Logger
	db       txRunner
	releases eligibleReleaseLister
	outbox   outboxEmitter
	now      func() time.Time
}

func (j *escrowReminderJob) Name() string { return "escrow-release-reminder" }

func (j *escrowReminderJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	eligible, err := j.releases.ListEligible(ctx, asOf, pagination.Params{Limit: escrowReminderBatchSize})
	if err != nil {
		return fmt.Errorf("query eligible sub orders: %w", err)
	}
	count := 0
	for _, row := range eligible {
		if err := j.emitReminder(ctx, row); err != nil {
			return err
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "escrow release reminder sweep complete")
	return nil
}

// emitReminder is deduplicated per sub-order so repeated cycles do not stack
// nudges for the same held payout.
func (j *escrowReminderJob) emitReminder(ctx context.Context, row releases.EligibleSubOrder) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowReleaseReminder,
			AggregateType: enums.AggregateSubOrder,
			AggregateID:   row.SubOrderID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.EscrowReleaseReminderEvent{
				SubOrderID:  row.SubOrderID,
				StoreID:     row.StoreID,
				AmountCents: row.PayoutCents,
				DeliveredAt: row.DeliveredAt,
			},
		})
	})
}
