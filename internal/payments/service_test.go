package payments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
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

type stubWebhookRepo struct {
	seenEventIDs map[string]bool
	inserted     []string
	processed    []uuid.UUID
}

func (s *stubWebhookRepo) WithTx(tx *gorm.DB) WebhookEventRepository {
	return s
}

func (s *stubWebhookRepo) InsertIfNew(ctx context.Context, gatewayEventID, eventType string, payload json.RawMessage) (*models.WebhookEvent, bool, error) {
	if s.seenEventIDs[gatewayEventID] {
		return nil, false, nil
	}
	s.inserted = append(s.inserted, gatewayEventID)
	return &models.WebhookEvent{ID: uuid.New(), GatewayEventID: gatewayEventID, EventType: eventType}, true, nil
}

func (s *stubWebhookRepo) MarkProcessed(ctx context.Context, id uuid.UUID, processingErr *string) error {
	s.processed = append(s.processed, id)
	return nil
}

type stubOrdersRepo struct {
	order         *models.Order
	paidGatewayID string
	paymentFailed bool
	markPaidCalls int
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, at time.Time) error {
	s.paidGatewayID = gatewayPaymentID
	s.markPaidCalls++
	return nil
}

func (s *stubOrdersRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	s.paymentFailed = true
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

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
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

func (s *stubOrdersRepo) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

type stubSubOrdersRepo struct {
	subOrders     []models.SubOrder
	escrowUpdates map[uuid.UUID]enums.EscrowStatus
	history       []models.SubOrderStatusHistory
}

func (s *stubSubOrdersRepo) WithTx(tx *gorm.DB) suborders.Repository {
	return s
}

func (s *stubSubOrdersRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	return s.subOrders, nil
}

func (s *stubSubOrdersRepo) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error {
	if s.escrowUpdates == nil {
		s.escrowUpdates = make(map[uuid.UUID]enums.EscrowStatus)
	}
	s.escrowUpdates[id] = status
	return nil
}

func (s *stubSubOrdersRepo) InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error {
	s.history = append(s.history, *row)
	return nil
}

func (s *stubSubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubSubOrdersRepo) ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	panic("not implemented")
}

type stubReleaseRepo struct {
	created []models.FundRelease
}

func (s *stubReleaseRepo) WithTx(tx *gorm.DB) releases.Repository {
	return s
}

func (s *stubReleaseRepo) Create(ctx context.Context, release *models.FundRelease) (*models.FundRelease, error) {
	if release.ID == uuid.Nil {
		release.ID = uuid.New()
	}
	s.created = append(s.created, *release)
	return release, nil
}

func (s *stubReleaseRepo) FindBySubOrderForUpdate(ctx context.Context, subOrderID uuid.UUID) (*models.FundRelease, error) {
	panic("not implemented")
}

func (s *stubReleaseRepo) MarkReleased(ctx context.Context, id uuid.UUID, adminUserID uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubReleaseRepo) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubReleaseRepo) ListEligible(ctx context.Context, asOf time.Time, params pagination.Params) ([]releases.EligibleSubOrder, error) {
	panic("not implemented")
}

func (s *stubReleaseRepo) CountEligible(ctx context.Context, asOf time.Time) (int64, error) {
	panic("not implemented")
}

func (s *stubReleaseRepo) HasOpenReturn(ctx context.Context, subOrderID uuid.UUID) (bool, error) {
	panic("not implemented")
}

type stubWalletService struct {
	credits []wallets.JournalInput
}

func (s *stubWalletService) CreditPending(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	s.credits = append(s.credits, input)
	return nil
}

func (s *stubWalletService) EnsureWallet(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, currency enums.Currency) (*models.StoreWallet, error) {
	panic("not implemented")
}

func (s *stubWalletService) ReleaseToAvailable(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) DebitRefund(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) Adjust(ctx context.Context, input wallets.AdjustInput) error {
	panic("not implemented")
}

func (s *stubWalletService) GetByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error) {
	panic("not implemented")
}

func (s *stubWalletService) ListEntries(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error) {
	panic("not implemented")
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type paymentFixture struct {
	service     Service
	webhookRepo *stubWebhookRepo
	ordersRepo  *stubOrdersRepo
	subOrders   *stubSubOrdersRepo
	releases    *stubReleaseRepo
	wallets     *stubWalletService
	outbox      *stubOutboxPublisher
}

func newPaymentFixture(t *testing.T, order *models.Order, subOrders []models.SubOrder) *paymentFixture {
	t.Helper()
	fixture := &paymentFixture{
		webhookRepo: &stubWebhookRepo{},
		ordersRepo:  &stubOrdersRepo{order: order},
		subOrders:   &stubSubOrdersRepo{subOrders: subOrders},
		releases:    &stubReleaseRepo{},
		wallets:     &stubWalletService{},
		outbox:      &stubOutboxPublisher{},
	}
	service, err := NewService(ServiceParams{
		Tx:           stubTxRunner{},
		WebhookRepo:  fixture.webhookRepo,
		OrdersRepo:   fixture.ordersRepo,
		SubOrderRepo: fixture.subOrders,
		ReleaseRepo:  fixture.releases,
		Wallets:      fixture.wallets,
		Outbox:       fixture.outbox,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	fixture.service = service
	return fixture
}

func TestProcessOrderHoldsEscrowPerSubOrder(t *testing.T) {
	order := &models.Order{
		ID:         uuid.New(),
		Status:     enums.OrderStatusPendingPayment,
		TotalCents: 12_000,
	}
	storeA := uuid.New()
	storeB := uuid.New()
	subOrders := []models.SubOrder{
		{ID: uuid.New(), StoreID: storeA, SubOrderNumber: "ORD-1001-A", Status: enums.SubOrderStatusPending, PayoutCents: 4_500},
		{ID: uuid.New(), StoreID: storeB, SubOrderNumber: "ORD-1001-B", Status: enums.SubOrderStatusPending, PayoutCents: 6_300},
	}
	fixture := newPaymentFixture(t, order, subOrders)

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID:   "evt-1",
		EventType:        "payment.updated",
		GatewayPaymentID: "pay-1",
		OrderID:          order.ID,
		PaymentStatus:    "COMPLETED",
		AmountCents:      12_000,
	})
	if err != nil {
		t.Fatalf("process order failed: %v", err)
	}

	if fixture.ordersRepo.paidGatewayID != "pay-1" {
		t.Fatalf("order not marked paid with gateway payment id, got %q", fixture.ordersRepo.paidGatewayID)
	}
	if got := len(fixture.releases.created); got != 2 {
		t.Fatalf("expected 2 fund releases, got %d", got)
	}
	for i, subOrder := range subOrders {
		release := fixture.releases.created[i]
		if release.SubOrderID != subOrder.ID || release.StoreID != subOrder.StoreID {
			t.Fatalf("fund release %d bound to wrong sub-order", i)
		}
		if release.AmountCents != subOrder.PayoutCents {
			t.Fatalf("fund release %d amount %d, want %d", i, release.AmountCents, subOrder.PayoutCents)
		}
		if release.Status != enums.FundReleaseStatusHeld {
			t.Fatalf("fund release %d status %s, want held", i, release.Status)
		}
		if fixture.subOrders.escrowUpdates[subOrder.ID] != enums.EscrowStatusHeld {
			t.Fatalf("sub-order %d escrow not held", i)
		}
	}
	if got := len(fixture.wallets.credits); got != 2 {
		t.Fatalf("expected 2 pending credits, got %d", got)
	}
	if fixture.wallets.credits[0].AmountCents != 4_500 || fixture.wallets.credits[1].AmountCents != 6_300 {
		t.Fatalf("pending credits carry wrong amounts: %+v", fixture.wallets.credits)
	}
	if got := len(fixture.outbox.events); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}
	if fixture.outbox.events[0].EventType != enums.EventOrderPaid {
		t.Fatalf("unexpected event type %s", fixture.outbox.events[0].EventType)
	}
	if got := len(fixture.webhookRepo.processed); got != 1 {
		t.Fatalf("webhook event not marked processed")
	}
}

func TestProcessOrderSkipsCanceledSubOrders(t *testing.T) {
	order := &models.Order{
		ID:         uuid.New(),
		Status:     enums.OrderStatusPendingPayment,
		TotalCents: 5_000,
	}
	live := models.SubOrder{ID: uuid.New(), StoreID: uuid.New(), SubOrderNumber: "ORD-1002-A", Status: enums.SubOrderStatusPending, PayoutCents: 4_000}
	canceled := models.SubOrder{ID: uuid.New(), StoreID: uuid.New(), SubOrderNumber: "ORD-1002-B", Status: enums.SubOrderStatusCanceled, PayoutCents: 900}
	fixture := newPaymentFixture(t, order, []models.SubOrder{live, canceled})

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID: "evt-2",
		OrderID:        order.ID,
		PaymentStatus:  "COMPLETED",
		AmountCents:    5_000,
	})
	if err != nil {
		t.Fatalf("process order failed: %v", err)
	}

	if got := len(fixture.releases.created); got != 1 {
		t.Fatalf("expected 1 fund release, got %d", got)
	}
	if fixture.releases.created[0].SubOrderID != live.ID {
		t.Fatalf("fund release created for canceled sub-order")
	}
	if _, touched := fixture.subOrders.escrowUpdates[canceled.ID]; touched {
		t.Fatalf("escrow updated for canceled sub-order")
	}
}

func TestProcessOrderDuplicateDeliveryIsNoOp(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment, TotalCents: 1_000}
	fixture := newPaymentFixture(t, order, nil)
	fixture.webhookRepo.seenEventIDs = map[string]bool{"evt-dup": true}

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID: "evt-dup",
		OrderID:        order.ID,
		PaymentStatus:  "COMPLETED",
		AmountCents:    1_000,
	})
	if err != nil {
		t.Fatalf("duplicate delivery returned error: %v", err)
	}

	if fixture.ordersRepo.markPaidCalls != 0 {
		t.Fatalf("duplicate delivery touched the order")
	}
	if len(fixture.outbox.events) != 0 {
		t.Fatalf("duplicate delivery emitted events")
	}
	if len(fixture.webhookRepo.processed) != 0 {
		t.Fatalf("duplicate delivery marked processed")
	}
}

func TestProcessOrderRejectsAmountMismatch(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment, TotalCents: 10_000}
	fixture := newPaymentFixture(t, order, nil)

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID: "evt-3",
		OrderID:        order.ID,
		PaymentStatus:  "COMPLETED",
		AmountCents:    9_999,
	})
	if err == nil {
		t.Fatalf("expected amount mismatch error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if fixture.ordersRepo.markPaidCalls != 0 {
		t.Fatalf("mismatched payment marked the order paid")
	}
}

func TestProcessOrderAlreadySettledIsNoOp(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaid, TotalCents: 2_000}
	fixture := newPaymentFixture(t, order, nil)

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID: "evt-4",
		OrderID:        order.ID,
		PaymentStatus:  "COMPLETED",
		AmountCents:    2_000,
	})
	if err != nil {
		t.Fatalf("settled order replay returned error: %v", err)
	}

	if fixture.ordersRepo.markPaidCalls != 0 {
		t.Fatalf("settled order was re-marked paid")
	}
	if len(fixture.outbox.events) != 0 {
		t.Fatalf("settled order replay emitted events")
	}
	if got := len(fixture.webhookRepo.processed); got != 1 {
		t.Fatalf("webhook event should still be marked processed")
	}
}

func TestProcessOrderRetriesAfterPaymentFailure(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaymentFailed, TotalCents: 3_000}
	subOrder := models.SubOrder{ID: uuid.New(), StoreID: uuid.New(), SubOrderNumber: "ORD-1003-A", Status: enums.SubOrderStatusPending, PayoutCents: 2_700}
	fixture := newPaymentFixture(t, order, []models.SubOrder{subOrder})

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID:   "evt-5",
		GatewayPaymentID: "pay-5",
		OrderID:          order.ID,
		PaymentStatus:    "COMPLETED",
		AmountCents:      3_000,
	})
	if err != nil {
		t.Fatalf("retried payment failed: %v", err)
	}
	if fixture.ordersRepo.markPaidCalls != 1 {
		t.Fatalf("retried payment did not mark the order paid")
	}
}

func TestProcessOrderMarksPaymentFailed(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment, TotalCents: 8_000}
	fixture := newPaymentFixture(t, order, nil)

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID:   "evt-6",
		GatewayPaymentID: "pay-6",
		OrderID:          order.ID,
		PaymentStatus:    "FAILED",
	})
	if err != nil {
		t.Fatalf("process order failed: %v", err)
	}

	if !fixture.ordersRepo.paymentFailed {
		t.Fatalf("order not marked payment failed")
	}
	if got := len(fixture.outbox.events); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}
	if fixture.outbox.events[0].EventType != enums.EventOrderPaymentFailed {
		t.Fatalf("unexpected event type %s", fixture.outbox.events[0].EventType)
	}
}

func TestProcessOrderUnknownOrderNotFound(t *testing.T) {
	fixture := newPaymentFixture(t, nil, nil)

	err := fixture.service.ProcessOrder(context.Background(), WebhookInput{
		GatewayEventID: "evt-7",
		OrderID:        uuid.New(),
		PaymentStatus:  "COMPLETED",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}
