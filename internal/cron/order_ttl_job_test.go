package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/outbox"
)

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTTLOrderRepo struct {
	pending []models.Order
	orders  map[uuid.UUID]*models.Order
	expired []uuid.UUID
}

func (f *fakeTTLOrderRepo) ListExpiredPending(_ context.Context, _ time.Time, _ int) ([]models.Order, error) {
	return f.pending, nil
}

func (f *fakeTTLOrderRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return f.orders[id], nil
}

func (f *fakeTTLOrderRepo) MarkExpired(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.expired = append(f.expired, id)
	return nil
}

type fakeTTLSubOrderRepo struct {
	subOrders map[uuid.UUID][]models.SubOrder
	canceled  []uuid.UUID
	history   []models.SubOrderStatusHistory
}

func (f *fakeTTLSubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.SubOrder, error) {
	for _, rows := range f.subOrders {
		for i := range rows {
			if rows[i].ID == id {
				return &rows[i], nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTTLSubOrderRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	return f.subOrders[orderID], nil
}

func (f *fakeTTLSubOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.SubOrderStatus, _ time.Time) error {
	if status == enums.SubOrderStatusCanceled {
		f.canceled = append(f.canceled, id)
	}
	return nil
}

func (f *fakeTTLSubOrderRepo) InsertStatusHistory(_ context.Context, row *models.SubOrderStatusHistory) error {
	f.history = append(f.history, *row)
	return nil
}

type fakeStockRestorer struct {
	restored map[uuid.UUID]int
}

func (f *fakeStockRestorer) RestoreStock(_ context.Context, id uuid.UUID, quantity int) error {
	if f.restored == nil {
		f.restored = map[uuid.UUID]int{}
	}
	f.restored[id] += quantity
	return nil
}

func newTTLJob(t *testing.T, orderRepo *fakeTTLOrderRepo, subOrderRepo *fakeTTLSubOrderRepo, stock *fakeStockRestorer, emitter *fakeEmitter) *orderTTLJob {
	t.Helper()
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     passthroughTxRunner{},
		Orders: orderRepo,
		Outbox: emitter,
		RepoFactory: func(*gorm.DB) (txOrderRepo, txSubOrderRepo, stockRestorer) {
			return orderRepo, subOrderRepo, stock
		},
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job, ok := jobIface.(*orderTTLJob)
	if !ok {
		t.Fatalf("expected orderTTLJob, got %T", jobIface)
	}
	return job
}

func TestOrderTTLJobExpiresOverdueOrders(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(-time.Hour)
	orderID := uuid.New()
	productID := uuid.New()
	subOrderID := uuid.New()

	order := models.Order{ID: orderID, Status: enums.OrderStatusPendingPayment, ExpiresAt: &expiresAt}
	orderRepo := &fakeTTLOrderRepo{
		pending: []models.Order{order},
		orders:  map[uuid.UUID]*models.Order{orderID: &order},
	}
	subOrderRepo := &fakeTTLSubOrderRepo{
		subOrders: map[uuid.UUID][]models.SubOrder{
			orderID: {{
				ID:      subOrderID,
				OrderID: orderID,
				Status:  enums.SubOrderStatusPending,
				Items: []models.SubOrderItem{
					{SubOrderID: subOrderID, ProductID: productID, Quantity: 3},
				},
			}},
		},
	}
	stock := &fakeStockRestorer{}
	emitter := &fakeEmitter{}
	job := newTTLJob(t, orderRepo, subOrderRepo, stock, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orderRepo.expired) != 1 || orderRepo.expired[0] != orderID {
		t.Fatalf("expected order %s expired, got %v", orderID, orderRepo.expired)
	}
	if len(subOrderRepo.canceled) != 1 || subOrderRepo.canceled[0] != subOrderID {
		t.Fatalf("expected sub order canceled, got %v", subOrderRepo.canceled)
	}
	if stock.restored[productID] != 3 {
		t.Fatalf("expected 3 units restored, got %d", stock.restored[productID])
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType != enums.EventOrderExpired {
		t.Fatalf("unexpected event type %s", emitter.events[0].EventType)
	}
	if len(subOrderRepo.history) != 1 || subOrderRepo.history[0].ToStatus != enums.SubOrderStatusCanceled {
		t.Fatalf("expected cancellation history row, got %+v", subOrderRepo.history)
	}
}

func TestOrderTTLJobSkipsOrdersPaidSinceSweep(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(-time.Hour)
	orderID := uuid.New()

	// The sweep query saw the order as pending but the locked row is paid.
	stale := models.Order{ID: orderID, Status: enums.OrderStatusPendingPayment, ExpiresAt: &expiresAt}
	fresh := models.Order{ID: orderID, Status: enums.OrderStatusPaid, ExpiresAt: &expiresAt}
	orderRepo := &fakeTTLOrderRepo{
		pending: []models.Order{stale},
		orders:  map[uuid.UUID]*models.Order{orderID: &fresh},
	}
	subOrderRepo := &fakeTTLSubOrderRepo{}
	stock := &fakeStockRestorer{}
	emitter := &fakeEmitter{}
	job := newTTLJob(t, orderRepo, subOrderRepo, stock, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orderRepo.expired) != 0 {
		t.Fatalf("expected no expirations, got %v", orderRepo.expired)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events, got %d", len(emitter.events))
	}
}
