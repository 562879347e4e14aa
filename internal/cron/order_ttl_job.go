package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
)

const orderTTLBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type expiredOrderLister interface {
	ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]models.Order, error)
}

type txOrderRepo interface {
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

type txSubOrderRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error
	InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error
}

type stockRestorer interface {
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type ttlRepoFactory func(tx *gorm.DB) (txOrderRepo, txSubOrderRepo, stockRestorer)

func defaultTTLRepos(tx *gorm.DB) (txOrderRepo, txSubOrderRepo, stockRestorer) {
	return orders.NewRepository(tx), suborders.NewRepository(tx), products.NewRepository(tx)
}

// OrderTTLJobParams configure the pending order expiration sweep.
type OrderTTLJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      expiredOrderLister
	Outbox      outboxEmitter
	RepoFactory ttlRepoFactory
}

// NewOrderTTLJob builds the cron job that expires orders whose payment window
// lapsed without a completed payment.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultTTLRepos
	}
	return &orderTTLJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		outbox:      params.Outbox,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type orderTTLJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      expiredOrderLister
	outbox      outboxEmitter
	repoFactory ttlRepoFactory
	now         func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	stale, err := j.orders.ListExpiredPending(ctx, asOf, orderTTLBatchSize)
	if err != nil {
		return fmt.Errorf("query expired pending orders: %w", err)
	}
	var errs []error
	count := 0
	for _, order := range stale {
		// One stuck order must not block the rest of the sweep.
		if err := j.expireOrder(ctx, order.ID); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "failed": len(errs)})
	j.logg.Info(logCtx, "order expiration sweep complete")
	return multierr.Combine(errs...)
}

func (j *orderTTLJob) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo, subOrderRepo, stock := j.repoFactory(tx)

		current, err := orderRepo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		now := j.now().UTC()
		// A payment webhook may have landed between the sweep query and the
		// row lock. Only still-unpaid, still-overdue orders expire.
		if current.Status != enums.OrderStatusPendingPayment {
			return nil
		}
		if current.ExpiresAt == nil || current.ExpiresAt.After(now) {
			return nil
		}

		subOrders, err := subOrderRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		note := "payment window expired"
		for _, subOrder := range subOrders {
			if subOrder.Status == enums.SubOrderStatusCanceled {
				continue
			}
			full, err := subOrderRepo.FindByID(ctx, subOrder.ID)
			if err != nil {
				return err
			}
			for _, item := range full.Items {
				if err := stock.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			if err := subOrderRepo.UpdateStatus(ctx, subOrder.ID, enums.SubOrderStatusCanceled, now); err != nil {
				return err
			}
			if err := subOrderRepo.InsertStatusHistory(ctx, &models.SubOrderStatusHistory{
				SubOrderID: subOrder.ID,
				FromStatus: subOrder.Status,
				ToStatus:   enums.SubOrderStatusCanceled,
				Note:       &note,
			}); err != nil {
				return err
			}
		}

		if err := orderRepo.MarkExpired(ctx, orderID, now); err != nil {
			return err
		}

		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:   orderID,
				ExpiredAt: now,
			},
		})
	})
}
