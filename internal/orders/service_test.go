package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOrdersRepo struct {
	order    *models.Order
	canceled bool
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.canceled = true
	return nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) CreateSubOrder(ctx context.Context, subOrder *models.SubOrder) (*models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) CreateSubOrderItems(ctx context.Context, items []models.SubOrderItem) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListByCustomer(ctx context.Context, customerUserID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) UpdatePaymentLink(ctx context.Context, id uuid.UUID, url string, gatewayPaymentID *string) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, at time.Time) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

type stubSubOrdersRepo struct {
	subOrders []models.SubOrder
	canceled  []uuid.UUID
	history   []models.SubOrderStatusHistory
}

func (s *stubSubOrdersRepo) WithTx(tx *gorm.DB) suborders.Repository {
	return s
}

func (s *stubSubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	for i := range s.subOrders {
		if s.subOrders[i].ID == id {
			return &s.subOrders[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	return s.subOrders, nil
}

func (s *stubSubOrdersRepo) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error {
	if status == enums.SubOrderStatusCanceled {
		s.canceled = append(s.canceled, id)
	}
	return nil
}

func (s *stubSubOrdersRepo) UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error {
	s.history = append(s.history, *row)
	return nil
}

func (s *stubSubOrdersRepo) ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	panic("not implemented")
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newOrderService(t *testing.T, repo *stubOrdersRepo, subOrderRepo *stubSubOrdersRepo, publisher *stubOutboxPublisher) Service {
	t.Helper()
	service, err := NewService(repo, subOrderRepo, products.NewRepository(nil), stubTxRunner{}, publisher)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func TestCancelVoidsUnpaidOrder(t *testing.T) {
	customerID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: customerID,
		Status:         enums.OrderStatusPendingPayment,
	}
	subOrders := []models.SubOrder{
		{ID: uuid.New(), OrderID: order.ID, Status: enums.SubOrderStatusPending},
		{ID: uuid.New(), OrderID: order.ID, Status: enums.SubOrderStatusPending},
	}
	repo := &stubOrdersRepo{order: order}
	subOrderRepo := &stubSubOrdersRepo{subOrders: subOrders}
	publisher := &stubOutboxPublisher{}
	service := newOrderService(t, repo, subOrderRepo, publisher)

	if err := service.Cancel(context.Background(), customerID, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if !repo.canceled {
		t.Fatalf("order not marked canceled")
	}
	if got := len(subOrderRepo.canceled); got != 2 {
		t.Fatalf("expected 2 canceled sub orders, got %d", got)
	}
	if got := len(subOrderRepo.history); got != 2 {
		t.Fatalf("expected 2 history rows, got %d", got)
	}
	if got := len(publisher.events); got != 1 || publisher.events[0].EventType != enums.EventOrderCanceled {
		t.Fatalf("order canceled event not emitted")
	}
}

func TestCancelSkipsAlreadyCanceledSubOrders(t *testing.T) {
	customerID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: customerID,
		Status:         enums.OrderStatusPaymentFailed,
	}
	subOrders := []models.SubOrder{
		{ID: uuid.New(), OrderID: order.ID, Status: enums.SubOrderStatusCanceled},
		{ID: uuid.New(), OrderID: order.ID, Status: enums.SubOrderStatusPending},
	}
	repo := &stubOrdersRepo{order: order}
	subOrderRepo := &stubSubOrdersRepo{subOrders: subOrders}
	service := newOrderService(t, repo, subOrderRepo, &stubOutboxPublisher{})

	if err := service.Cancel(context.Background(), customerID, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if got := len(subOrderRepo.canceled); got != 1 {
		t.Fatalf("expected 1 newly canceled sub order, got %d", got)
	}
	if subOrderRepo.canceled[0] != subOrders[1].ID {
		t.Fatalf("wrong sub order canceled")
	}
}

func TestCancelRejectsPaidOrder(t *testing.T) {
	customerID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: customerID,
		Status:         enums.OrderStatusPaid,
	}
	repo := &stubOrdersRepo{order: order}
	service := newOrderService(t, repo, &stubSubOrdersRepo{}, &stubOutboxPublisher{})

	err := service.Cancel(context.Background(), customerID, order.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.canceled {
		t.Fatalf("paid order was canceled")
	}
}

func TestCancelAlreadyCanceledIsNoOp(t *testing.T) {
	customerID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: customerID,
		Status:         enums.OrderStatusCanceled,
	}
	repo := &stubOrdersRepo{order: order}
	publisher := &stubOutboxPublisher{}
	service := newOrderService(t, repo, &stubSubOrdersRepo{}, publisher)

	if err := service.Cancel(context.Background(), customerID, order.ID); err != nil {
		t.Fatalf("repeat cancel returned error: %v", err)
	}
	if repo.canceled {
		t.Fatalf("repeat cancel touched the order")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("repeat cancel emitted events")
	}
}

func TestCancelRejectsForeignCustomer(t *testing.T) {
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: uuid.New(),
		Status:         enums.OrderStatusPendingPayment,
	}
	repo := &stubOrdersRepo{order: order}
	service := newOrderService(t, repo, &stubSubOrdersRepo{}, &stubOutboxPublisher{})

	err := service.Cancel(context.Background(), uuid.New(), order.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestGetHidesForeignOrders(t *testing.T) {
	order := &models.Order{
		ID:             uuid.New(),
		CustomerUserID: uuid.New(),
	}
	repo := &stubOrdersRepo{order: order}
	service := newOrderService(t, repo, &stubSubOrdersRepo{}, &stubOutboxPublisher{})

	_, err := service.Get(context.Background(), uuid.New(), order.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
