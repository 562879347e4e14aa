package returns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/pagination"
	"github.com/bazario/backend/pkg/square"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubReturnsRepo struct {
	request       *models.ReturnRequest
	openForSub    bool
	created       *models.ReturnRequest
	decision      *enums.ReturnStatus
	completedWith *int64
}

func (s *stubReturnsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubReturnsRepo) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	s.created = request
	return request, nil
}

func (s *stubReturnsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if s.request == nil || s.request.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.request, nil
}

func (s *stubReturnsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return s.FindByID(ctx, id)
}

func (s *stubReturnsRepo) HasOpenForSubOrder(ctx context.Context, subOrderID uuid.UUID) (bool, error) {
	return s.openForSub, nil
}

func (s *stubReturnsRepo) UpdateDecision(ctx context.Context, id uuid.UUID, status enums.ReturnStatus, adminUserID uuid.UUID, note *string, at time.Time) error {
	s.decision = &status
	return nil
}

func (s *stubReturnsRepo) MarkCompleted(ctx context.Context, id uuid.UUID, refundAmountCents int64, at time.Time) error {
	s.completedWith = &refundAmountCents
	return nil
}

func (s *stubReturnsRepo) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ReturnRequest, error) {
	panic("not implemented")
}

type stubSubOrderRepo struct {
	subOrder     *models.SubOrder
	escrowStatus *enums.EscrowStatus
	refundStatus *enums.RefundStatus
}

func (s *stubSubOrderRepo) WithTx(tx *gorm.DB) suborders.Repository {
	return s
}

func (s *stubSubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	if s.subOrder == nil || s.subOrder.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.subOrder, nil
}

func (s *stubSubOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	return s.FindByID(ctx, id)
}

func (s *stubSubOrderRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrderRepo) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubSubOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error {
	panic("not implemented")
}

func (s *stubSubOrderRepo) UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error {
	panic("not implemented")
}

func (s *stubSubOrderRepo) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error {
	s.escrowStatus = &status
	return nil
}

func (s *stubSubOrderRepo) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error {
	s.refundStatus = &status
	return nil
}

func (s *stubSubOrderRepo) SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubSubOrderRepo) InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error {
	panic("not implemented")
}

func (s *stubSubOrderRepo) ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	panic("not implemented")
}

type stubOrdersRepo struct {
	order *models.Order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
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

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
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

func (s *stubOrdersRepo) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubOrdersRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not implemented")
}

type stubReleaseRepo struct {
	release  *models.FundRelease
	refunded bool
}

func (s *stubReleaseRepo) WithTx(tx *gorm.DB) releases.Repository {
	return s
}

func (s *stubReleaseRepo) Create(ctx context.Context, release *models.FundRelease) (*models.FundRelease, error) {
	panic("not implemented")
}

func (s *stubReleaseRepo) FindBySubOrderForUpdate(ctx context.Context, subOrderID uuid.UUID) (*models.FundRelease, error) {
	if s.release == nil || s.release.SubOrderID != subOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.release, nil
}

func (s *stubReleaseRepo) MarkReleased(ctx context.Context, id uuid.UUID, adminUserID uuid.UUID, at time.Time) error {
	panic("not implemented")
}

func (s *stubReleaseRepo) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.refunded = true
	return nil
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
	debits []wallets.JournalInput
}

func (s *stubWalletService) EnsureWallet(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, currency enums.Currency) (*models.StoreWallet, error) {
	panic("not implemented")
}

func (s *stubWalletService) CreditPending(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) ReleaseToAvailable(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) DebitRefund(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	s.debits = append(s.debits, input)
	return nil
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

type stubAuditService struct {
	entries []audit.Entry
}

func (s *stubAuditService) Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditService) List(ctx context.Context, filter audit.ListFilter, params pagination.Params) ([]models.AuditLog, error) {
	panic("not implemented")
}

type stubRefunder struct {
	calls []square.RefundCreateParams
	err   error
}

func (s *stubRefunder) RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return &sq.PaymentRefund{}, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type returnFixture struct {
	service   Service
	repo      *stubReturnsRepo
	subOrders *stubSubOrderRepo
	orders    *stubOrdersRepo
	releases  *stubReleaseRepo
	wallets   *stubWalletService
	audit     *stubAuditService
	refunder  *stubRefunder
	outbox    *stubOutboxPublisher
}

func newReturnFixture(t *testing.T) *returnFixture {
	t.Helper()
	fixture := &returnFixture{
		repo:      &stubReturnsRepo{},
		subOrders: &stubSubOrderRepo{},
		orders:    &stubOrdersRepo{},
		releases:  &stubReleaseRepo{},
		wallets:   &stubWalletService{},
		audit:     &stubAuditService{},
		refunder:  &stubRefunder{},
		outbox:    &stubOutboxPublisher{},
	}
	service, err := NewService(ServiceParams{
		Repo:         fixture.repo,
		SubOrderRepo: fixture.subOrders,
		OrdersRepo:   fixture.orders,
		ReleaseRepo:  fixture.releases,
		Tx:           stubTxRunner{},
		Wallets:      fixture.wallets,
		Audit:        fixture.audit,
		Refunds:      fixture.refunder,
		Outbox:       fixture.outbox,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	fixture.service = service
	return fixture
}

func deliveredSubOrder(customerID uuid.UUID) (*models.SubOrder, *models.Order) {
	windowEnd := time.Now().Add(48 * time.Hour)
	orderID := uuid.New()
	subOrder := &models.SubOrder{
		ID:                 uuid.New(),
		OrderID:            orderID,
		StoreID:            uuid.New(),
		SubOrderNumber:     "ORD-3001-A",
		Currency:           enums.CurrencyUSD,
		Status:             enums.SubOrderStatusDelivered,
		EscrowStatus:       enums.EscrowStatusHeld,
		ReturnWindowEndsAt: &windowEnd,
		TotalCents:         5_500,
		PayoutCents:        4_950,
	}
	gatewayID := "pay-3001"
	order := &models.Order{
		ID:               orderID,
		CustomerUserID:   customerID,
		Status:           enums.OrderStatusPaid,
		GatewayPaymentID: &gatewayID,
	}
	return subOrder, order
}

func TestRequestOpensReturnInsideWindow(t *testing.T) {
	customerID := uuid.New()
	fixture := newReturnFixture(t)
	fixture.subOrders.subOrder, fixture.orders.order = deliveredSubOrder(customerID)

	created, err := fixture.service.Request(context.Background(), RequestInput{
		SubOrderID:     fixture.subOrders.subOrder.ID,
		CustomerUserID: customerID,
		Reason:         "arrived damaged",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if created.Status != enums.ReturnStatusRequested {
		t.Fatalf("created return in status %s", created.Status)
	}
	if got := len(fixture.outbox.events); got != 1 || fixture.outbox.events[0].EventType != enums.EventReturnRequested {
		t.Fatalf("return requested event not emitted")
	}
}

func TestRequestRejectsClosedWindow(t *testing.T) {
	customerID := uuid.New()
	fixture := newReturnFixture(t)
	fixture.subOrders.subOrder, fixture.orders.order = deliveredSubOrder(customerID)
	closed := time.Now().Add(-time.Hour)
	fixture.subOrders.subOrder.ReturnWindowEndsAt = &closed

	_, err := fixture.service.Request(context.Background(), RequestInput{
		SubOrderID:     fixture.subOrders.subOrder.ID,
		CustomerUserID: customerID,
		Reason:         "changed my mind",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRequestRejectsForeignCustomer(t *testing.T) {
	fixture := newReturnFixture(t)
	fixture.subOrders.subOrder, fixture.orders.order = deliveredSubOrder(uuid.New())

	_, err := fixture.service.Request(context.Background(), RequestInput{
		SubOrderID:     fixture.subOrders.subOrder.ID,
		CustomerUserID: uuid.New(),
		Reason:         "not mine to return",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequestRejectsDuplicateOpenReturn(t *testing.T) {
	customerID := uuid.New()
	fixture := newReturnFixture(t)
	fixture.subOrders.subOrder, fixture.orders.order = deliveredSubOrder(customerID)
	fixture.repo.openForSub = true

	_, err := fixture.service.Request(context.Background(), RequestInput{
		SubOrderID:     fixture.subOrders.subOrder.ID,
		CustomerUserID: customerID,
		Reason:         "second attempt",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDecideApproveRecordsAudit(t *testing.T) {
	fixture := newReturnFixture(t)
	fixture.repo.request = &models.ReturnRequest{
		ID:     uuid.New(),
		Status: enums.ReturnStatusRequested,
	}
	adminID := uuid.New()

	_, err := fixture.service.Decide(context.Background(), DecisionInput{
		ReturnRequestID: fixture.repo.request.ID,
		AdminUserID:     adminID,
		Approve:         true,
	})
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}

	if fixture.repo.decision == nil || *fixture.repo.decision != enums.ReturnStatusApproved {
		t.Fatalf("decision not recorded as approved")
	}
	if got := len(fixture.audit.entries); got != 1 || fixture.audit.entries[0].Action != enums.AuditActionReturnApproved {
		t.Fatalf("approval audit entry missing")
	}
}

func TestDecideRejectsSecondDecision(t *testing.T) {
	fixture := newReturnFixture(t)
	fixture.repo.request = &models.ReturnRequest{
		ID:     uuid.New(),
		Status: enums.ReturnStatusRejected,
	}

	_, err := fixture.service.Decide(context.Background(), DecisionInput{
		ReturnRequestID: fixture.repo.request.ID,
		AdminUserID:     uuid.New(),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCompleteRefundsAndUnwindsEscrow(t *testing.T) {
	customerID := uuid.New()
	fixture := newReturnFixture(t)
	subOrder, order := deliveredSubOrder(customerID)
	fixture.subOrders.subOrder = subOrder
	fixture.orders.order = order
	fixture.repo.request = &models.ReturnRequest{
		ID:         uuid.New(),
		SubOrderID: subOrder.ID,
		Status:     enums.ReturnStatusApproved,
	}
	fixture.releases.release = &models.FundRelease{
		ID:          uuid.New(),
		SubOrderID:  subOrder.ID,
		StoreID:     subOrder.StoreID,
		Status:      enums.FundReleaseStatusHeld,
		AmountCents: subOrder.PayoutCents,
	}
	adminID := uuid.New()

	_, err := fixture.service.Complete(context.Background(), CompleteInput{
		ReturnRequestID: fixture.repo.request.ID,
		AdminUserID:     adminID,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if got := len(fixture.refunder.calls); got != 1 {
		t.Fatalf("expected 1 gateway refund, got %d", got)
	}
	refund := fixture.refunder.calls[0]
	if refund.PaymentID != *order.GatewayPaymentID {
		t.Fatalf("refund issued against wrong payment %q", refund.PaymentID)
	}
	if refund.AmountCents != subOrder.TotalCents {
		t.Fatalf("customer refunded %d, want full charge %d", refund.AmountCents, subOrder.TotalCents)
	}
	if fixture.repo.completedWith == nil || *fixture.repo.completedWith != subOrder.TotalCents {
		t.Fatalf("return not completed with refund amount")
	}
	if !fixture.releases.refunded {
		t.Fatalf("fund release not marked refunded")
	}
	if fixture.subOrders.escrowStatus == nil || *fixture.subOrders.escrowStatus != enums.EscrowStatusRefunded {
		t.Fatalf("escrow not marked refunded")
	}
	if got := len(fixture.wallets.debits); got != 1 {
		t.Fatalf("expected 1 wallet debit, got %d", got)
	}
	if fixture.wallets.debits[0].AmountCents != subOrder.PayoutCents {
		t.Fatalf("vendor debited %d, want payout %d", fixture.wallets.debits[0].AmountCents, subOrder.PayoutCents)
	}
	if got := len(fixture.outbox.events); got != 1 || fixture.outbox.events[0].EventType != enums.EventRefundCompleted {
		t.Fatalf("refund completed event not emitted")
	}
}

func TestCompleteLeavesReturnRetryableOnGatewayFailure(t *testing.T) {
	customerID := uuid.New()
	fixture := newReturnFixture(t)
	subOrder, order := deliveredSubOrder(customerID)
	fixture.subOrders.subOrder = subOrder
	fixture.orders.order = order
	fixture.repo.request = &models.ReturnRequest{
		ID:         uuid.New(),
		SubOrderID: subOrder.ID,
		Status:     enums.ReturnStatusApproved,
	}
	fixture.refunder.err = errors.New("gateway unavailable")

	_, err := fixture.service.Complete(context.Background(), CompleteInput{
		ReturnRequestID: fixture.repo.request.ID,
		AdminUserID:     uuid.New(),
	})
	if err == nil {
		t.Fatalf("expected gateway error")
	}

	if fixture.repo.completedWith != nil {
		t.Fatalf("return completed despite refund failure")
	}
	if len(fixture.wallets.debits) != 0 {
		t.Fatalf("wallet debited despite refund failure")
	}
}

func TestCompleteRejectsUnapprovedReturn(t *testing.T) {
	fixture := newReturnFixture(t)
	fixture.repo.request = &models.ReturnRequest{
		ID:     uuid.New(),
		Status: enums.ReturnStatusRequested,
	}

	_, err := fixture.service.Complete(context.Background(), CompleteInput{
		ReturnRequestID: fixture.repo.request.ID,
		AdminUserID:     uuid.New(),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(fixture.refunder.calls) != 0 {
		t.Fatalf("gateway refund issued for unapproved return")
	}
}
