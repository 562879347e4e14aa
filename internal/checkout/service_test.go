package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/escrow"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/pkg/config"
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

type stubOrdersRepo struct {
	subOrders      []models.SubOrder
	items          []models.SubOrderItem
	paymentLinkURL string
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrdersRepo) CreateSubOrder(ctx context.Context, subOrder *models.SubOrder) (*models.SubOrder, error) {
	if subOrder.ID == uuid.Nil {
		subOrder.ID = uuid.New()
	}
	s.subOrders = append(s.subOrders, *subOrder)
	return subOrder, nil
}

func (s *stubOrdersRepo) CreateSubOrderItems(ctx context.Context, items []models.SubOrderItem) error {
	s.items = append(s.items, items...)
	return nil
}

func (s *stubOrdersRepo) UpdatePaymentLink(ctx context.Context, id uuid.UUID, url string, gatewayPaymentID *string) error {
	s.paymentLinkURL = url
	return nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
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

type stubStoreRepo struct{}

func (s *stubStoreRepo) WithTx(tx *gorm.DB) stores.Repository {
	return s
}

func (s *stubStoreRepo) Create(ctx context.Context, store *models.Store) (*models.Store, error) {
	panic("not implemented")
}

func (s *stubStoreRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	panic("not implemented")
}

func (s *stubStoreRepo) FindBySlug(ctx context.Context, slug string) (*models.Store, error) {
	panic("not implemented")
}

func (s *stubStoreRepo) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error) {
	panic("not implemented")
}

func (s *stubStoreRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.StoreStatus, at time.Time) error {
	panic("not implemented")
}

func (s *stubStoreRepo) List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error) {
	panic("not implemented")
}

type stubPaymentLinker struct {
	params []square.PaymentLinkCreateParams
	link   *sq.PaymentLink
	err    error
}

func (s *stubPaymentLinker) CreatePaymentLink(ctx context.Context, params square.PaymentLinkCreateParams) (*sq.PaymentLink, error) {
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.link, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func marketplaceConfig() config.MarketplaceConfig {
	return config.MarketplaceConfig{
		CommissionRate:     "0.10",
		ProcessingFeeRate:  "0.029",
		ProcessingFeeCents: 30,
		ReturnWindow:       168 * time.Hour,
		PendingOrderTTL:    24 * time.Hour,
	}
}

func newCheckoutService(t *testing.T, ordersRepo *stubOrdersRepo, linker *stubPaymentLinker) *service {
	t.Helper()
	calculator, err := escrow.NewCalculator(marketplaceConfig())
	if err != nil {
		t.Fatalf("failed to build calculator: %v", err)
	}
	svc, err := NewService(
		stubTxRunner{},
		ordersRepo,
		products.NewRepository(nil),
		&stubStoreRepo{},
		calculator,
		linker,
		&stubOutboxPublisher{},
		marketplaceConfig(),
	)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return svc.(*service)
}

func TestMergeLinesCombinesDuplicateProducts(t *testing.T) {
	productID := uuid.New()
	otherID := uuid.New()
	merged, err := mergeLines([]Line{
		{ProductID: productID, Quantity: 2},
		{ProductID: otherID, Quantity: 1},
		{ProductID: productID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged lines, got %d", len(merged))
	}
	if merged[0].ProductID != productID || merged[0].Quantity != 5 {
		t.Fatalf("duplicate product not merged: %+v", merged[0])
	}
	if merged[1].ProductID != otherID || merged[1].Quantity != 1 {
		t.Fatalf("distinct product altered: %+v", merged[1])
	}
}

func TestMergeLinesRejectsBadInput(t *testing.T) {
	if _, err := mergeLines(nil); pkgerrors.As(err) == nil {
		t.Fatalf("empty input accepted")
	}
	if _, err := mergeLines([]Line{{ProductID: uuid.Nil, Quantity: 1}}); pkgerrors.As(err) == nil {
		t.Fatalf("nil product id accepted")
	}
	if _, err := mergeLines([]Line{{ProductID: uuid.New(), Quantity: 0}}); pkgerrors.As(err) == nil {
		t.Fatalf("zero quantity accepted")
	}
}

func TestCreateSubOrderSnapshotsSettlement(t *testing.T) {
	ordersRepo := &stubOrdersRepo{}
	svc := newCheckoutService(t, ordersRepo, &stubPaymentLinker{})

	productID := uuid.New()
	storeID := uuid.New()
	productsByID := map[uuid.UUID]*models.Product{
		productID: {
			ID:         productID,
			StoreID:    storeID,
			Name:       "Walnut cutting board",
			PriceCents: 5_000,
			IsActive:   true,
		},
	}
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: 1042,
		Currency:    enums.CurrencyUSD,
	}

	subOrder, err := svc.createSubOrder(context.Background(), ordersRepo, order, storeGroup{
		storeID: storeID,
		lines:   []Line{{ProductID: productID, Quantity: 2}},
	}, productsByID, 1)
	if err != nil {
		t.Fatalf("create sub order failed: %v", err)
	}

	if subOrder.SubOrderNumber != "1042-1" {
		t.Fatalf("unexpected sub order number %q", subOrder.SubOrderNumber)
	}
	if subOrder.TotalCents != 10_000 {
		t.Fatalf("total %d, want 10000", subOrder.TotalCents)
	}
	// 10% commission on 10000 plus 2.9% fee plus 30 fixed.
	if subOrder.CommissionCents != 1_000 {
		t.Fatalf("commission %d, want 1000", subOrder.CommissionCents)
	}
	if subOrder.ProcessingFeeCents != 320 {
		t.Fatalf("processing fee %d, want 320", subOrder.ProcessingFeeCents)
	}
	if subOrder.PayoutCents != 8_680 {
		t.Fatalf("payout %d, want 8680", subOrder.PayoutCents)
	}
	if subOrder.CommissionCents+subOrder.ProcessingFeeCents+subOrder.PayoutCents != subOrder.TotalCents {
		t.Fatalf("settlement does not sum to total")
	}
	if got := len(ordersRepo.items); got != 1 {
		t.Fatalf("expected 1 sub order item, got %d", got)
	}
	if ordersRepo.items[0].LineTotalCents != 10_000 {
		t.Fatalf("line total %d, want 10000", ordersRepo.items[0].LineTotalCents)
	}
}

func TestAttachPaymentLinkStoresHostedURL(t *testing.T) {
	ordersRepo := &stubOrdersRepo{}
	url := "https://square.link/u/abc123"
	linker := &stubPaymentLinker{link: &sq.PaymentLink{URL: &url}}
	svc := newCheckoutService(t, ordersRepo, linker)

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: 7,
		Currency:    enums.CurrencyUSD,
		TotalCents:  2_500,
	}
	if err := svc.attachPaymentLink(context.Background(), order, "https://bazario.example/orders"); err != nil {
		t.Fatalf("attach payment link failed: %v", err)
	}

	if ordersRepo.paymentLinkURL != url {
		t.Fatalf("payment link url not persisted")
	}
	if order.PaymentLinkURL == nil || *order.PaymentLinkURL != url {
		t.Fatalf("payment link url not set on order")
	}
	if got := len(linker.params); got != 1 {
		t.Fatalf("expected 1 gateway call, got %d", got)
	}
	if linker.params[0].ReferenceID != order.ID.String() {
		t.Fatalf("payment link reference id %q, want order id", linker.params[0].ReferenceID)
	}
}

func TestAttachPaymentLinkRejectsMissingURL(t *testing.T) {
	ordersRepo := &stubOrdersRepo{}
	linker := &stubPaymentLinker{link: &sq.PaymentLink{}}
	svc := newCheckoutService(t, ordersRepo, linker)

	err := svc.attachPaymentLink(context.Background(), &models.Order{ID: uuid.New()}, "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if ordersRepo.paymentLinkURL != "" {
		t.Fatalf("empty link persisted")
	}
}

func TestExecuteRejectsMissingAddress(t *testing.T) {
	svc := newCheckoutService(t, &stubOrdersRepo{}, &stubPaymentLinker{})

	_, err := svc.Execute(context.Background(), Input{
		CustomerUserID: uuid.New(),
		Lines:          []Line{{ProductID: uuid.New(), Quantity: 1}},
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRejectsAnonymousCaller(t *testing.T) {
	svc := newCheckoutService(t, &stubOrdersRepo{}, &stubPaymentLinker{})

	_, err := svc.Execute(context.Background(), Input{
		Lines: []Line{{ProductID: uuid.New(), Quantity: 1}},
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
