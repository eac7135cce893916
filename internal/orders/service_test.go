package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/wallet"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

type stubRepo struct {
	products       map[uuid.UUID]models.Product
	cartItems      []models.CartItem
	orders         map[uuid.UUID]*models.Order
	coupon         *models.Coupon
	nextNumber     int64
	credited       map[uuid.UUID]bool
	stockFailures  map[uuid.UUID]bool
	clearedCart    bool
	redeemOK       bool
	redeemErr      error
	redeemCalls    int
	updatedOrders  []*models.Order
	savedShipments []*models.Shipment
	restockCalls   map[uuid.UUID]int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		products:      make(map[uuid.UUID]models.Product),
		orders:        make(map[uuid.UUID]*models.Order),
		credited:      make(map[uuid.UUID]bool),
		stockFailures: make(map[uuid.UUID]bool),
		restockCalls:  make(map[uuid.UUID]int),
		nextNumber:    100001,
		redeemOK:      true,
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	n := r.nextNumber
	r.nextNumber++
	return n, nil
}

func (r *stubRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.orders[order.ID] = order
	return nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *stubRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.BuyerID == buyerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *stubRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.SellerID == sellerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateOrder(ctx context.Context, order *models.Order) error {
	r.orders[order.ID] = order
	r.updatedOrders = append(r.updatedOrders, order)
	return nil
}

func (r *stubRepo) UpdateShipment(ctx context.Context, shipment *models.Shipment) error {
	r.savedShipments = append(r.savedShipments, shipment)
	return nil
}

func (r *stubRepo) MarkSellerCredited(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if r.credited[orderID] {
		return false, nil
	}
	r.credited[orderID] = true
	if order, ok := r.orders[orderID]; ok {
		order.SellerCredited = true
	}
	return true, nil
}

func (r *stubRepo) ListCartItems(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error) {
	return r.cartItems, nil
}

func (r *stubRepo) ClearCart(ctx context.Context, buyerID uuid.UUID) error {
	r.clearedCart = true
	return nil
}

func (r *stubRepo) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (r *stubRepo) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if r.stockFailures[productID] {
		return false, nil
	}
	return true, nil
}

func (r *stubRepo) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	r.restockCalls[productID] += qty
	return nil
}

func (r *stubRepo) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if r.coupon == nil || r.coupon.Code != code {
		return nil, gorm.ErrRecordNotFound
	}
	return r.coupon, nil
}

func (r *stubRepo) RedeemCoupon(ctx context.Context, couponID, buyerID uuid.UUID, orderID *uuid.UUID) (bool, error) {
	r.redeemCalls++
	if r.redeemErr != nil {
		return false, r.redeemErr
	}
	return r.redeemOK, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (o *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func (o *stubOutbox) has(eventType enums.OutboxEventType) bool {
	for _, e := range o.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type stubWallet struct {
	credits []wallet.MovementInput
	debits  []wallet.MovementInput
}

func (w *stubWallet) Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error) {
	w.credits = append(w.credits, input)
	return &models.WalletEntry{}, nil
}

func (w *stubWallet) Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error) {
	w.debits = append(w.debits, input)
	return &models.WalletEntry{}, nil
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	v.calls++
	return v.err
}

type stubRefunder struct {
	err   error
	calls int
}

func (r *stubRefunder) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "rfnd_1", nil
}

type stubRTO struct {
	calls int
	err   error
}

func (r *stubRTO) CreateRTO(ctx context.Context, orderID uuid.UUID) error {
	r.calls++
	return r.err
}

func testAddress() types.Address {
	return types.Address{
		Name:       "Asha Rao",
		Phone:      "9999999999",
		Line1:      "12 Market Street",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
	}
}

func newCheckoutFixture(t *testing.T) (*stubRepo, *stubOutbox, *stubWallet, *stubVerifier, Service) {
	t.Helper()
	repo := newStubRepo()
	ob := &stubOutbox{}
	w := &stubWallet{}
	verifier := &stubVerifier{}
	svc, err := NewService(Deps{
		Repo:     repo,
		Tx:       stubTx{},
		Outbox:   ob,
		Wallet:   w,
		Verifier: verifier,
		Refunder: &stubRefunder{},
		Logger:   logger.New(logger.Options{ServiceName: "orders-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return repo, ob, w, verifier, svc
}

func addProduct(repo *stubRepo, sellerID uuid.UUID, priceCents, stock int) models.Product {
	product := models.Product{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Name:       "Cotton Kurta",
		SKU:        "SKU-" + uuid.NewString()[:8],
		PriceCents: priceCents,
		Stock:      stock,
		IsActive:   true,
	}
	repo.products[product.ID] = product
	return product
}

func TestCheckout_CODSplitsBySeller(t *testing.T) {
	repo, ob, _, _, svc := newCheckoutFixture(t)

	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := addProduct(repo, sellerA, 50000, 10)
	productB := addProduct(repo, sellerB, 30000, 10)
	buyerID := uuid.New()

	created, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []CheckoutItem{
			{ProductID: productA.ID, Qty: 2},
			{ProductID: productB.ID, Qty: 1},
		},
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 seller orders, got %d", len(created))
	}
	for _, order := range created {
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
			t.Fatalf("cod order created in %s/%s", order.Status, order.PaymentStatus)
		}
		if order.CommissionCents == nil || order.SellerEarningsCents == nil {
			t.Fatal("commission split missing")
		}
		if *order.CommissionCents+*order.SellerEarningsCents != order.ItemsPriceCents {
			t.Fatal("commission split does not sum to items subtotal")
		}
		if order.TotalCents != order.ItemsPriceCents+order.ShippingPriceCents+order.TaxCents-order.DiscountCents {
			t.Fatal("order total invariant violated")
		}
	}
	if !repo.clearedCart {
		t.Fatal("cart was not cleared")
	}
	if !ob.has(enums.EventOrderCreated) {
		t.Fatal("order_created event missing")
	}
	if ob.has(enums.EventOrderConfirmed) {
		t.Fatal("cod checkout must not confirm orders")
	}
}

func TestCheckout_OnlineConfirmsAndVerifies(t *testing.T) {
	repo, ob, w, verifier, svc := newCheckoutFixture(t)

	sellerID := uuid.New()
	product := addProduct(repo, sellerID, 100000, 5)

	created, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:          uuid.New(),
		PaymentMethod:    enums.PaymentMethodOnline,
		Items:            []CheckoutItem{{ProductID: product.ID, Qty: 1}},
		ShippingAddress:  testAddress(),
		GatewayOrderID:   "ord_1",
		GatewayPaymentID: "pay_1",
		Signature:        "sig",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if verifier.calls != 1 {
		t.Fatalf("verifier calls = %d", verifier.calls)
	}
	order := created[0]
	if order.Status != enums.OrderStatusConfirmed || order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("online order in %s/%s", order.Status, order.PaymentStatus)
	}
	if len(w.credits) != 0 {
		t.Fatal("seller must not be credited at checkout")
	}
	if !ob.has(enums.EventOrderConfirmed) {
		t.Fatal("order_confirmed event missing")
	}
}

func TestCheckout_OnlineVerificationFailureAbortsAll(t *testing.T) {
	repo, _, _, verifier, svc := newCheckoutFixture(t)
	verifier.err = pkgerrors.New(pkgerrors.CodePaymentVerification, "signature mismatch")

	product := addProduct(repo, uuid.New(), 100000, 5)
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:          uuid.New(),
		PaymentMethod:    enums.PaymentMethodOnline,
		Items:            []CheckoutItem{{ProductID: product.ID, Qty: 1}},
		ShippingAddress:  testAddress(),
		GatewayOrderID:   "ord_1",
		GatewayPaymentID: "pay_1",
		Signature:        "bad",
	})
	if err == nil {
		t.Fatal("expected verification failure")
	}
	if len(repo.orders) != 0 {
		t.Fatal("no order may be created on verification failure")
	}
}

func TestCheckout_InsufficientStockAbortsWholeCheckout(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)

	sellerA := uuid.New()
	sellerB := uuid.New()
	okProduct := addProduct(repo, sellerA, 50000, 10)
	exhausted := addProduct(repo, sellerB, 30000, 0)
	repo.stockFailures[exhausted.ID] = true

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodOnline,
		Items: []CheckoutItem{
			{ProductID: okProduct.ID, Qty: 1},
			{ProductID: exhausted.ID, Qty: 1},
		},
		ShippingAddress:  testAddress(),
		GatewayOrderID:   "ord_1",
		GatewayPaymentID: "pay_1",
		Signature:        "sig",
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	derr := pkgerrors.As(err)
	if derr == nil || derr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckout_CouponDiscountSplitsProportionally(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	repo.coupon = &models.Coupon{ID: uuid.New(), Code: "SAVE100", DiscountCents: 10000, UsageLimit: 5}

	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := addProduct(repo, sellerA, 60000, 10)
	productB := addProduct(repo, sellerB, 40000, 10)

	created, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []CheckoutItem{
			{ProductID: productA.ID, Qty: 1},
			{ProductID: productB.ID, Qty: 1},
		},
		ShippingAddress: testAddress(),
		CouponCode:      "SAVE100",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 seller orders, got %d", len(created))
	}

	totalDiscount := 0
	for _, order := range created {
		want := 6000
		if order.SellerID == sellerB {
			want = 4000
		}
		if order.DiscountCents != want {
			t.Fatalf("seller discount = %d, want %d", order.DiscountCents, want)
		}
		if order.TotalCents != order.ItemsPriceCents+order.ShippingPriceCents+order.TaxCents-order.DiscountCents {
			t.Fatal("order total invariant violated")
		}
		totalDiscount += order.DiscountCents
	}
	if totalDiscount != 10000 {
		t.Fatalf("distributed discount sums to %d, want 10000", totalDiscount)
	}
}

func TestCheckout_DirectDiscountRemainderOnLargestSubtotal(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)

	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := addProduct(repo, sellerA, 70000, 10)
	productB := addProduct(repo, sellerB, 30000, 10)

	created, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []CheckoutItem{
			{ProductID: productA.ID, Qty: 1},
			{ProductID: productB.ID, Qty: 1},
		},
		ShippingAddress: testAddress(),
		DiscountCents:   101,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 seller orders, got %d", len(created))
	}

	for _, order := range created {
		// floor(101*0.7)=70 plus the remainder cent; floor(101*0.3)=30.
		want := 71
		if order.SellerID == sellerB {
			want = 30
		}
		if order.DiscountCents != want {
			t.Fatalf("seller discount = %d, want %d", order.DiscountCents, want)
		}
	}
}

func TestCheckout_CouponUsageLimitAborts(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	repo.coupon = &models.Coupon{ID: uuid.New(), Code: "SAVE10", DiscountCents: 1000, UsageLimit: 1}
	repo.redeemOK = false

	product := addProduct(repo, uuid.New(), 50000, 10)
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:         uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		Items:           []CheckoutItem{{ProductID: product.ID, Qty: 1}},
		ShippingAddress: testAddress(),
		CouponCode:      "SAVE10",
	})
	if err == nil {
		t.Fatal("expected coupon limit error")
	}
	if repo.redeemCalls != 1 {
		t.Fatalf("redeem calls = %d", repo.redeemCalls)
	}
}

func TestCheckout_UsesCartWhenItemsOmitted(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	product := addProduct(repo, uuid.New(), 20000, 10)
	buyerID := uuid.New()
	repo.cartItems = []models.CartItem{{BuyerID: buyerID, ProductID: product.ID, Qty: 3}}

	created, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:         buyerID,
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 1 || created[0].ItemsPriceCents != 60000 {
		t.Fatalf("unexpected orders: %+v", created)
	}
}

func seedOrder(repo *stubRepo, mutate func(*models.Order)) *models.Order {
	commission := 7000
	earnings := 93000
	order := &models.Order{
		ID:                  uuid.New(),
		OrderNumber:         100001,
		BuyerID:             uuid.New(),
		SellerID:            uuid.New(),
		PaymentMethod:       enums.PaymentMethodCOD,
		Status:              enums.OrderStatusPending,
		PaymentStatus:       enums.PaymentStatusPending,
		ShippingStatus:      enums.ShippingStatusPending,
		RefundStatus:        enums.RefundStatusNone,
		ItemsPriceCents:     100000,
		TotalCents:          100000,
		CommissionCents:     &commission,
		SellerEarningsCents: &earnings,
	}
	if mutate != nil {
		mutate(order)
	}
	repo.orders[order.ID] = order
	return order
}

func TestUpdateStatus_CODDeliveredCreditsOnce(t *testing.T) {
	repo, ob, w, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
	})
	actor := Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller}

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusDelivered,
		Actor:   actor,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("cod delivery must mark payment paid")
	}
	if updated.DeliveredAt == nil {
		t.Fatal("delivered timestamp missing")
	}
	if len(w.credits) != 1 || w.credits[0].AmountCents != 93000 {
		t.Fatalf("unexpected credits: %+v", w.credits)
	}
	if !ob.has(enums.EventSellerCredited) {
		t.Fatal("seller_credited event missing")
	}

	// A replayed delivery transition must not credit twice.
	if _, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusDelivered,
		Actor:   actor,
	}); err == nil {
		t.Fatal("expected state conflict on repeated delivery")
	}
	if len(w.credits) != 1 {
		t.Fatalf("credits applied %d times", len(w.credits))
	}
}

func TestUpdateStatus_ComputesCommissionForLegacyOrders(t *testing.T) {
	repo, _, w, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
		o.CommissionCents = nil
		o.SellerEarningsCents = nil
	})

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusDelivered,
		Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.CommissionCents == nil || *updated.CommissionCents != 7000 {
		t.Fatalf("legacy commission not computed: %+v", updated.CommissionCents)
	}
	if len(w.credits) != 1 || w.credits[0].AmountCents != 93000 {
		t.Fatalf("unexpected credits: %+v", w.credits)
	}
}

func TestUpdateStatus_RejectsBackwardAndForeignTransitions(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
	})

	if _, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusProcessing,
		Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
	}); err == nil {
		t.Fatal("expected rejection of backward transition")
	}

	if _, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusDelivered,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller},
	}); err == nil {
		t.Fatal("expected rejection of foreign seller")
	}
}

func TestCancel_DispatchedOrderFlagsRTO(t *testing.T) {
	repo, ob, _, _, svc := newCheckoutFixture(t)
	rto := &stubRTO{}
	svcImpl := svc.(*service)
	svcImpl.rto = rto

	awb := "AWB123"
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
		o.Shipment = &models.Shipment{ID: uuid.New(), OrderID: o.ID, AWB: &awb}
	})

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "buyer requested",
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if len(repo.savedShipments) != 1 || !repo.savedShipments[0].IsReturning {
		t.Fatal("shipment not flagged for return")
	}
	if rto.calls != 1 {
		t.Fatalf("rto calls = %d", rto.calls)
	}
	if !ob.has(enums.EventOrderCancelled) {
		t.Fatal("order_cancelled event missing")
	}
}

func TestCancel_RTOFailureDoesNotBlockCancellation(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	rto := &stubRTO{err: errors.New("carrier down")}
	svc.(*service).rto = rto

	awb := "AWB123"
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
		o.Shipment = &models.Shipment{ID: uuid.New(), OrderID: o.ID, AWB: &awb}
	})

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "buyer requested",
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatal("cancellation must survive rto failure")
	}
}

func TestCancel_TerminalOrdersRejected(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusDelivered
	})

	if _, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "too late",
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	}); err == nil {
		t.Fatal("expected rejection of delivered order cancellation")
	}
}

func TestCancel_OnlineUnshippedRestoresStock(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	productID := uuid.New()
	order := seedOrder(repo, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodOnline
		o.Status = enums.OrderStatusConfirmed
		o.PaymentStatus = enums.PaymentStatusPaid
		o.Items = []models.OrderItem{{ProductID: productID, Qty: 2}}
	})

	if _, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "changed plans",
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if repo.restockCalls[productID] != 2 {
		t.Fatalf("restock = %d, want 2", repo.restockCalls[productID])
	}
}

func TestRefund_ClawsBackCreditedEarnings(t *testing.T) {
	repo, ob, w, _, svc := newCheckoutFixture(t)
	refunder := &stubRefunder{}
	svc.(*service).refunder = refunder

	paymentID := "pay_1"
	order := seedOrder(repo, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodOnline
		o.Status = enums.OrderStatusDelivered
		o.PaymentStatus = enums.PaymentStatusPaid
		o.GatewayPaymentID = &paymentID
		o.SellerCredited = true
	})

	refunded, err := svc.Refund(context.Background(), RefundInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s", refunded.PaymentStatus)
	}
	if refunded.RefundedCents != 100000 {
		t.Fatalf("refunded = %d", refunded.RefundedCents)
	}
	if len(w.debits) != 1 || w.debits[0].AmountCents != 93000 {
		t.Fatalf("unexpected clawback: %+v", w.debits)
	}
	if !ob.has(enums.EventOrderRefunded) {
		t.Fatal("order_refunded event missing")
	}
}

func TestRefund_GatewayFailureLeavesOrderUntouched(t *testing.T) {
	repo, _, w, _, svc := newCheckoutFixture(t)
	svc.(*service).refunder = &stubRefunder{err: errors.New("gateway down")}

	paymentID := "pay_1"
	order := seedOrder(repo, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodOnline
		o.Status = enums.OrderStatusDelivered
		o.PaymentStatus = enums.PaymentStatusPaid
		o.GatewayPaymentID = &paymentID
		o.SellerCredited = true
	})

	if _, err := svc.Refund(context.Background(), RefundInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}); err == nil {
		t.Fatal("expected gateway error")
	}
	if repo.orders[order.ID].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("order mutated despite gateway failure")
	}
	if len(w.debits) != 0 {
		t.Fatal("clawback applied despite gateway failure")
	}
}

func TestRefund_RequiresAdmin(t *testing.T) {
	repo, _, _, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, nil)

	if _, err := svc.Refund(context.Background(), RefundInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
	}); err == nil {
		t.Fatal("expected forbidden")
	}
}

func TestCreditOnDelivery_IdempotentAcrossCallers(t *testing.T) {
	repo, _, w, _, svc := newCheckoutFixture(t)
	order := seedOrder(repo, func(o *models.Order) {
		o.Status = enums.OrderStatusDelivered
	})

	tx := &gorm.DB{}
	if err := svc.CreditOnDelivery(context.Background(), tx, order.ID); err != nil {
		t.Fatalf("credit on delivery: %v", err)
	}
	if err := svc.CreditOnDelivery(context.Background(), tx, order.ID); err != nil {
		t.Fatalf("second credit on delivery: %v", err)
	}
	if len(w.credits) != 1 {
		t.Fatalf("credits = %d, want exactly one", len(w.credits))
	}
}
