package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/wallet"
	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

type stubReturnsRepo struct {
	requests map[uuid.UUID]*models.ReturnRequest
	orders   map[uuid.UUID]*models.Order
	applied  map[uuid.UUID]bool
}

func newStubReturnsRepo() *stubReturnsRepo {
	return &stubReturnsRepo{
		requests: make(map[uuid.UUID]*models.ReturnRequest),
		orders:   make(map[uuid.UUID]*models.Order),
		applied:  make(map[uuid.UUID]bool),
	}
}

func (r *stubReturnsRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubReturnsRepo) Create(ctx context.Context, request *models.ReturnRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	r.requests[request.ID] = request
	return nil
}

func (r *stubReturnsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	request, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return request, nil
}

func (r *stubReturnsRepo) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	for _, request := range r.requests {
		if request.OrderID == orderID && request.Status.IsOpen() {
			return request, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubReturnsRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return nil, nil
}

func (r *stubReturnsRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return nil, nil
}

func (r *stubReturnsRepo) Update(ctx context.Context, request *models.ReturnRequest) error {
	r.requests[request.ID] = request
	return nil
}

func (r *stubReturnsRepo) MarkAllocationApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	if r.applied[id] {
		return false, nil
	}
	r.applied[id] = true
	if request, ok := r.requests[id]; ok {
		request.AllocationApplied = true
	}
	return true, nil
}

func (r *stubReturnsRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

type stubReturnsTx struct{}

func (stubReturnsTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubReturnsOutbox struct {
	events []outbox.DomainEvent
}

func (o *stubReturnsOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type stubReturnsWallet struct {
	debits  []wallet.MovementInput
	credits []wallet.MovementInput
}

func (w *stubReturnsWallet) Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error) {
	w.credits = append(w.credits, input)
	return &models.WalletEntry{}, nil
}

func (w *stubReturnsWallet) Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error) {
	w.debits = append(w.debits, input)
	return &models.WalletEntry{}, nil
}

type stubReversePickup struct {
	shipment *courier.Shipment
	err      error
	calls    int
}

func (c *stubReversePickup) CreateReverseShipment(ctx context.Context, params courier.ReverseShipmentParams) (*courier.Shipment, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.shipment, nil
}

func (c *stubReversePickup) PickupName() string { return "Primary" }

func newReturnsFixture(t *testing.T, carrier *stubReversePickup) (*stubReturnsRepo, *stubReturnsWallet, *stubReturnsOutbox, Service) {
	t.Helper()
	repo := newStubReturnsRepo()
	w := &stubReturnsWallet{}
	ob := &stubReturnsOutbox{}
	svc, err := NewService(Deps{
		Repo:    repo,
		Tx:      stubReturnsTx{},
		Outbox:  ob,
		Wallet:  w,
		Carrier: carrier,
		Logger:  logger.New(logger.Options{ServiceName: "returns-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return repo, w, ob, svc
}

func deliveredOrder(repo *stubReturnsRepo, deliveredAgo time.Duration) *models.Order {
	deliveredAt := time.Now().Add(-deliveredAgo)
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   100001,
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
		Status:        enums.OrderStatusDelivered,
		DeliveredAt:   &deliveredAt,
		ShippingAddress: &types.Address{
			Name:       "Asha Rao",
			Phone:      "9999999999",
			Line1:      "12 Market Street",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
		},
		Shipment: &models.Shipment{
			ID:                 uuid.New(),
			ForwardChargeCents: 15000,
		},
	}
	repo.orders[order.ID] = order
	return order
}

func TestCreate_WithinWindow(t *testing.T) {
	repo, _, ob, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, 48*time.Hour)

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
		ReasonText:     "seam came apart",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if request.Status != enums.ReturnStatusRequested {
		t.Fatalf("status = %s", request.Status)
	}
	if request.SellerID != order.SellerID {
		t.Fatal("seller not copied from order")
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventReturnRequested {
		t.Fatalf("events = %+v", ob.events)
	}
}

func TestCreate_RejectsOutsideWindow(t *testing.T) {
	repo, _, _, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, 11*24*time.Hour)

	_, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	})
	if err == nil {
		t.Fatal("expected window rejection")
	}
}

func TestCreate_RejectsUndeliveredOrder(t *testing.T) {
	repo, _, _, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, time.Hour)
	order.Status = enums.OrderStatusShipped
	order.DeliveredAt = nil

	_, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	})
	if err == nil {
		t.Fatal("expected state rejection")
	}
}

func TestCreate_RejectsSecondOpenRequest(t *testing.T) {
	repo, _, _, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, time.Hour)
	input := CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonSizeIssue,
		ReasonText:     "too small",
	}

	if _, err := svc.Create(context.Background(), input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), input)
	if err == nil {
		t.Fatal("expected duplicate rejection")
	}
	derr := pkgerrors.As(err)
	if derr == nil || derr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApprove_VendorFaultChargesVendorInFull(t *testing.T) {
	carrier := &stubReversePickup{shipment: &courier.Shipment{ShipmentID: "rev_1", AWB: "RAWB1"}}
	repo, w, _, svc := newReturnsFixture(t, carrier)
	order := deliveredOrder(repo, time.Hour)

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonWrongItem,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.Approve(context.Background(), request.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.ReturnStatusApproved {
		t.Fatalf("status = %s", approved.Status)
	}
	if approved.ReturnChargeCents != 15000 || approved.VendorChargeCents != 15000 || approved.PlatformChargeCents != 0 {
		t.Fatalf("allocation = %d/%d of %d", approved.VendorChargeCents, approved.PlatformChargeCents, approved.ReturnChargeCents)
	}
	if len(w.debits) != 1 || w.debits[0].AmountCents != 15000 {
		t.Fatalf("debits = %+v", w.debits)
	}
	if approved.ReverseAWB == nil || *approved.ReverseAWB != "RAWB1" {
		t.Fatalf("reverse awb = %v", approved.ReverseAWB)
	}
}

func TestApprove_ChangedMindSplitsCharge(t *testing.T) {
	repo, w, _, svc := newReturnsFixture(t, &stubReversePickup{shipment: &courier.Shipment{ShipmentID: "rev_1"}})
	order := deliveredOrder(repo, time.Hour)
	order.Shipment.ForwardChargeCents = 101

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonOther,
		ReasonText:     "customer changed mind",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.Approve(context.Background(), request.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.VendorChargeCents+approved.PlatformChargeCents != 101 {
		t.Fatal("split must sum to the full charge")
	}
	if approved.VendorChargeCents != 51 || approved.PlatformChargeCents != 50 {
		t.Fatalf("split = %d/%d", approved.VendorChargeCents, approved.PlatformChargeCents)
	}
	if len(w.debits) != 1 || w.debits[0].AmountCents != 51 {
		t.Fatalf("debits = %+v", w.debits)
	}
}

func TestApprove_SettlesOnceEvenWhenRetried(t *testing.T) {
	repo, w, _, svc := newReturnsFixture(t, &stubReversePickup{err: pkgerrors.New(pkgerrors.CodeDependency, "carrier down")})
	order := deliveredOrder(repo, time.Hour)

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	admin := Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}
	// Carrier failure does not fail approval.
	if _, err := svc.Approve(context.Background(), request.ID, admin); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// A second approval attempt is a state conflict and must not debit again.
	if _, err := svc.Approve(context.Background(), request.ID, admin); err == nil {
		t.Fatal("expected state conflict")
	}
	if len(w.debits) != 1 {
		t.Fatalf("debits applied %d times", len(w.debits))
	}
}

func TestApprove_ActualFreightRederivesSplit(t *testing.T) {
	// Carrier quotes 151 against the 101 estimate on a 50/50 scenario.
	carrier := &stubReversePickup{shipment: &courier.Shipment{ShipmentID: "rev_1", FreightCents: 151}}
	repo, w, _, svc := newReturnsFixture(t, carrier)
	order := deliveredOrder(repo, time.Hour)
	order.Shipment.ForwardChargeCents = 101

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonOther,
		ReasonText:     "changed my mind",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.Approve(context.Background(), request.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ReturnChargeCents != 151 {
		t.Fatalf("charge = %d", approved.ReturnChargeCents)
	}
	if approved.VendorChargeCents+approved.PlatformChargeCents != 151 {
		t.Fatal("re-derived split must preserve the sum")
	}
	// 51 at estimate time, then the proportional delta on top.
	total := int64(0)
	for _, debit := range w.debits {
		total += debit.AmountCents
	}
	if total != int64(approved.VendorChargeCents) {
		t.Fatalf("ledger total %d != vendor share %d", total, approved.VendorChargeCents)
	}
}

func TestReject_NoFinancialSideEffects(t *testing.T) {
	repo, w, ob, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, time.Hour)

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := svc.Reject(context.Background(), request.ID, "wear and tear", Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.ReturnStatusRejected || rejected.RejectedAt == nil {
		t.Fatalf("request = %+v", rejected)
	}
	if len(w.debits) != 0 {
		t.Fatal("rejection must not touch the wallet")
	}
	found := false
	for _, e := range ob.events {
		if e.EventType == enums.EventReturnRejected {
			found = true
		}
	}
	if !found {
		t.Fatal("return_rejected event missing")
	}
}

func TestApplyRTOCharge_DebitsVendorOnce(t *testing.T) {
	repo, w, _, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, time.Hour)
	order.PaymentMethod = enums.PaymentMethodCOD

	tx := &gorm.DB{}
	if err := svc.ApplyRTOCharge(context.Background(), tx, order); err != nil {
		t.Fatalf("apply rto charge: %v", err)
	}
	if len(w.debits) != 1 || w.debits[0].AmountCents != 15000 {
		t.Fatalf("debits = %+v", w.debits)
	}

	var request *models.ReturnRequest
	for _, r := range repo.requests {
		request = r
	}
	if request == nil || *request.AllocationScenario != enums.AllocationScenarioRTOCOD {
		t.Fatalf("request = %+v", request)
	}
	if request.Status != enums.ReturnStatusCompleted {
		t.Fatalf("status = %s", request.Status)
	}
}

func TestApplyRTOCharge_SkipsWhenOpenReturnExists(t *testing.T) {
	repo, w, _, svc := newReturnsFixture(t, &stubReversePickup{})
	order := deliveredOrder(repo, time.Hour)

	if _, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ApplyRTOCharge(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("apply rto charge: %v", err)
	}
	if len(w.debits) != 0 {
		t.Fatal("rto charge must defer to the open return")
	}
}

func TestComplete_Idempotent(t *testing.T) {
	repo, _, _, svc := newReturnsFixture(t, &stubReversePickup{shipment: &courier.Shipment{ShipmentID: "rev_1"}})
	order := deliveredOrder(repo, time.Hour)

	request, err := svc.Create(context.Background(), CreateInput{
		BuyerID:        order.BuyerID,
		OrderID:        order.ID,
		Type:           enums.ReturnTypeReturn,
		ReasonCategory: enums.ReturnReasonDefective,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(context.Background(), request.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	tx := &gorm.DB{}
	if err := svc.MarkPicked(context.Background(), tx, request.ID); err != nil {
		t.Fatalf("mark picked: %v", err)
	}
	if err := svc.Complete(context.Background(), tx, request.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := svc.Complete(context.Background(), tx, request.ID); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if repo.requests[request.ID].Status != enums.ReturnStatusCompleted {
		t.Fatalf("status = %s", repo.requests[request.ID].Status)
	}
}
