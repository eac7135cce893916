package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/pricing"
	"github.com/threadkart/marketplace-backend/internal/wallet"
	"github.com/threadkart/marketplace-backend/pkg/db"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
)

// Service owns the order lifecycle: checkout splitting, status
// transitions, cancellation and refunds.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) ([]models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	ApproveCancellation(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)
	// CreditOnDelivery releases seller earnings inside the caller's
	// transaction. At most one caller ever wins the credited flag.
	CreditOnDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxPublisher
	wallet        walletLedger
	verifier      PaymentVerifier
	refunder      PaymentRefunder
	booker        ShipmentBooker
	rto           RTOCreator
	commissionBPS int
	logger        *logger.Logger
}

// Deps bundles the service dependencies. Verifier, Refunder, Booker and
// RTO are optional; the operations needing them fail or degrade when the
// integration is not configured.
type Deps struct {
	Repo          Repository
	Tx            txRunner
	Outbox        outboxPublisher
	Wallet        walletLedger
	Verifier      PaymentVerifier
	Refunder      PaymentRefunder
	Booker        ShipmentBooker
	RTO           RTOCreator
	CommissionBPS int
	Logger        *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Wallet == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.CommissionBPS <= 0 {
		deps.CommissionBPS = pricing.DefaultCommissionRateBPS
	}
	return &service{
		repo:          deps.Repo,
		tx:            deps.Tx,
		outbox:        deps.Outbox,
		wallet:        deps.Wallet,
		verifier:      deps.Verifier,
		refunder:      deps.Refunder,
		booker:        deps.Booker,
		rto:           deps.RTO,
		commissionBPS: deps.CommissionBPS,
		logger:        deps.Logger,
	}, nil
}

type sellerGroup struct {
	sellerID uuid.UUID
	lines    []groupLine
}

type groupLine struct {
	product models.Product
	qty     int
}

func (g sellerGroup) itemsCents() int64 {
	var sum int64
	for _, line := range g.lines {
		sum += int64(line.product.PriceCents) * int64(line.qty)
	}
	return sum
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) ([]models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be cod or online")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative")
	}

	online := input.PaymentMethod == enums.PaymentMethodOnline
	if online {
		if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "online checkout requires gateway order id, payment id and signature")
		}
		if s.verifier == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment verification is not configured")
		}
		if err := s.verifier.Verify(ctx, input.GatewayOrderID, input.GatewayPaymentID, input.Signature); err != nil {
			return nil, err
		}
	}

	groups, err := s.buildSellerGroups(ctx, input)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if input.CouponCode != "" {
		coupon, err = s.loadCoupon(ctx, input.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	// Shipping and tax attach to the order with the largest items subtotal;
	// the discount is split across the sellers in proportion to their
	// subtotals, remainder cent on the largest one.
	primary := 0
	subtotals := make([]int64, len(groups))
	for i, group := range groups {
		subtotals[i] = group.itemsCents()
		if subtotals[i] > subtotals[primary] {
			primary = i
		}
	}
	discount := input.DiscountCents
	if coupon != nil {
		discount += int64(coupon.DiscountCents)
	}
	discounts := pricing.DistributeDiscount(subtotals, discount)

	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created = created[:0]

		for i, group := range groups {
			shipping, tax := int64(0), int64(0)
			if i == primary {
				shipping = input.ShippingPriceCents
				tax = input.TaxCents
			}

			order, err := s.createSellerOrder(ctx, repo, tx, input, group, shipping, tax, discounts[i], online)
			if err != nil {
				return err
			}
			created = append(created, *order)
		}

		if coupon != nil {
			firstID := created[primary].ID
			ok, err := repo.RedeemCoupon(ctx, coupon.ID, input.BuyerID, &firstID)
			if err != nil {
				if db.IsUniqueViolation(err, "idx_coupon_buyer") {
					return pkgerrors.New(pkgerrors.CodeValidation, "coupon already used")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeeming coupon")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "coupon usage limit reached")
			}
		}

		if err := repo.ClearCart(ctx, input.BuyerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Forward shipment booking is best-effort; checkout already committed.
	if s.booker != nil {
		for _, order := range created {
			if err := s.booker.BookForOrder(ctx, order.ID); err != nil {
				warnCtx := s.logger.WithOrderID(ctx, order.ID.String())
				s.logger.Warn(warnCtx, "forward shipment booking failed: "+err.Error())
			}
		}
	}

	return created, nil
}

func (s *service) buildSellerGroups(ctx context.Context, input CheckoutInput) ([]sellerGroup, error) {
	items := input.Items
	if len(items) == 0 {
		cartItems, err := s.repo.ListCartItems(ctx, input.BuyerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
		}
		for _, ci := range cartItems {
			items = append(items, CheckoutItem{ProductID: ci.ProductID, Qty: ci.Qty})
		}
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}

	qtyByProduct := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if _, seen := qtyByProduct[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		qtyByProduct[item.ProductID] += item.Qty
	}

	products, err := s.repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	if len(products) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more products do not exist")
	}

	bySeller := make(map[uuid.UUID][]groupLine)
	for _, product := range products {
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %q is no longer available", product.Name))
		}
		bySeller[product.SellerID] = append(bySeller[product.SellerID], groupLine{
			product: product,
			qty:     qtyByProduct[product.ID],
		})
	}

	groups := make([]sellerGroup, 0, len(bySeller))
	for sellerID, lines := range bySeller {
		groups = append(groups, sellerGroup{sellerID: sellerID, lines: lines})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].sellerID.String() < groups[j].sellerID.String()
	})
	return groups, nil
}

func (s *service) loadCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindCouponByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading coupon")
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	return coupon, nil
}

func (s *service) createSellerOrder(ctx context.Context, repo Repository, tx *gorm.DB, input CheckoutInput, group sellerGroup, shipping, tax, discount int64, online bool) (*models.Order, error) {
	lines := make([]pricing.LineItem, 0, len(group.lines))
	for _, line := range group.lines {
		lines = append(lines, pricing.LineItem{
			UnitPriceCents: int64(line.product.PriceCents),
			Quantity:       line.qty,
		})
	}
	totals, err := pricing.ComputeOrderTotals(lines, shipping, tax, discount)
	if err != nil {
		return nil, err
	}
	split, err := pricing.ComputeCommission(totals.ItemsCents, s.commissionBPS)
	if err != nil {
		return nil, err
	}
	if split.CommissionCents+split.SellerEarningsCents != totals.ItemsCents {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission split does not sum to items subtotal")
	}

	number, err := repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocating order number")
	}

	if online {
		for _, line := range group.lines {
			ok, err := repo.DecrementStock(ctx, line.product.ID, line.qty)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
			}
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %q", line.product.Name))
			}
		}
	}

	commission := int(split.CommissionCents)
	earnings := int(split.SellerEarningsCents)
	address := input.ShippingAddress

	order := &models.Order{
		OrderNumber:         number,
		BuyerID:             input.BuyerID,
		SellerID:            group.sellerID,
		PaymentMethod:       input.PaymentMethod,
		Status:              enums.OrderStatusPending,
		PaymentStatus:       enums.PaymentStatusPending,
		ShippingStatus:      enums.ShippingStatusPending,
		RefundStatus:        enums.RefundStatusNone,
		ItemsPriceCents:     int(totals.ItemsCents),
		ShippingPriceCents:  int(totals.ShippingCents),
		TaxCents:            int(totals.TaxCents),
		DiscountCents:       int(totals.DiscountCents),
		TotalCents:          int(totals.TotalCents),
		CommissionCents:     &commission,
		SellerEarningsCents: &earnings,
		ShippingAddress:     &address,
	}
	if input.CouponCode != "" && discount > 0 {
		code := input.CouponCode
		order.CouponCode = &code
	}
	if online {
		gatewayOrderID := input.GatewayOrderID
		gatewayPaymentID := input.GatewayPaymentID
		order.GatewayOrderID = &gatewayOrderID
		order.GatewayPaymentID = &gatewayPaymentID
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusPaid
	}

	for _, line := range group.lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.product.ID,
			Name:           line.product.Name,
			SKU:            line.product.SKU,
			UnitPriceCents: line.product.PriceCents,
			Qty:            line.qty,
			TotalCents:     line.product.PriceCents * line.qty,
		})
	}

	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer},
		Data: OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			BuyerID:       order.BuyerID,
			SellerID:      order.SellerID,
			PaymentMethod: order.PaymentMethod,
			TotalCents:    int64(order.TotalCents),
			Status:        order.Status,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	if online {
		confirmed := event
		confirmed.EventType = enums.EventOrderConfirmed
		if err := s.outbox.Emit(ctx, tx, confirmed); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.findOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	orders, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing buyer orders")
	}
	return orders, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	orders, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing seller orders")
	}
	return orders, nil
}

var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:    0,
	enums.OrderStatusConfirmed:  1,
	enums.OrderStatusProcessing: 2,
	enums.OrderStatusShipped:    3,
	enums.OrderStatusDelivered:  4,
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() || input.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeSellerMutation(order, input.Actor); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change status")
		}
		if order.RefundStatus == enums.RefundStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders with a pending refund cannot change status")
		}
		if statusRank[input.Status] <= statusRank[order.Status] {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Status))
		}

		from := order.Status
		order.Status = input.Status

		if input.Status == enums.OrderStatusDelivered {
			now := time.Now()
			order.DeliveredAt = &now
			order.ShippingStatus = enums.ShippingStatusDelivered
			if order.PaymentMethod == enums.PaymentMethodCOD {
				order.PaymentStatus = enums.PaymentStatusPaid
			}
			s.ensureCommission(order)
		}

		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order")
		}

		statusEvent := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
			Data: OrderStatusChangedEvent{
				OrderID:  order.ID,
				SellerID: order.SellerID,
				From:     from,
				To:       order.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, statusEvent); err != nil {
			return err
		}

		if input.Status == enums.OrderStatusDelivered {
			delivered := statusEvent
			delivered.EventType = enums.EventOrderDelivered
			if err := s.outbox.Emit(ctx, tx, delivered); err != nil {
				return err
			}
			if err := s.creditDeliveredOrder(ctx, tx, repo, order); err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ensureCommission computes the split on the fly for legacy records that
// predate commission capture at checkout.
func (s *service) ensureCommission(order *models.Order) {
	if order.CommissionCents != nil && order.SellerEarningsCents != nil {
		return
	}
	split, err := pricing.ComputeCommission(int64(order.ItemsPriceCents), s.commissionBPS)
	if err != nil {
		return
	}
	commission := int(split.CommissionCents)
	earnings := int(split.SellerEarningsCents)
	order.CommissionCents = &commission
	order.SellerEarningsCents = &earnings
}

func (s *service) CreditOnDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.findOrder(ctx, repo, orderID)
	if err != nil {
		return err
	}

	changed := false
	if order.DeliveredAt == nil {
		now := time.Now()
		order.DeliveredAt = &now
		changed = true
	}
	if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus != enums.PaymentStatusPaid {
		order.PaymentStatus = enums.PaymentStatusPaid
		changed = true
	}
	if order.CommissionCents == nil || order.SellerEarningsCents == nil {
		s.ensureCommission(order)
		changed = true
	}
	if changed {
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating delivered order")
		}
	}

	return s.creditDeliveredOrder(ctx, tx, repo, order)
}

func (s *service) creditDeliveredOrder(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	won, err := repo.MarkSellerCredited(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking seller credited")
	}
	if !won {
		return nil
	}
	if order.SellerEarningsCents == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "seller earnings missing for delivered order")
	}
	earnings := int64(*order.SellerEarningsCents)
	if earnings <= 0 {
		return nil
	}

	orderID := order.ID
	if _, err := s.wallet.Credit(ctx, tx, wallet.MovementInput{
		SellerID:    order.SellerID,
		AmountCents: earnings,
		Reason:      "order delivered",
		OrderID:     &orderID,
	}); err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSellerCredited,
		AggregateType: enums.AggregateWallet,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.SellerID, Role: enums.ActorRoleSystem},
		Data: SellerCreditedEvent{
			OrderID:       order.ID,
			SellerID:      order.SellerID,
			EarningsCents: earnings,
		},
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var cancelled *models.Order
	rtoRequired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeOrderAccess(order, input.Actor); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", order.Status))
		}

		now := time.Now()
		reason := input.Reason
		role := input.Actor.Role
		order.Status = enums.OrderStatusCancelled
		order.ShippingStatus = enums.ShippingStatusCancelled
		order.CancelReason = &reason
		order.CancelledBy = &role
		order.CancelledAt = &now

		dispatched := order.Shipment != nil && order.Shipment.AWB != nil && *order.Shipment.AWB != ""
		if dispatched {
			order.Shipment.IsReturning = true
			order.Shipment.StatusCode = "rto_initiated"
			if err := repo.UpdateShipment(ctx, order.Shipment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flagging shipment for return")
			}
			rtoRequired = true
		} else if order.PaymentMethod == enums.PaymentMethodOnline {
			// Return reserved stock for prepaid orders that never shipped.
			for _, item := range order.Items {
				if err := repo.IncrementStock(ctx, item.ProductID, item.Qty); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing reserved stock")
				}
			}
		}

		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
			Data: OrderCancelledEvent{
				OrderID:     order.ID,
				SellerID:    order.SellerID,
				Reason:      reason,
				CancelledBy: role,
				RTORequired: rtoRequired,
			},
		}); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	// RTO booking must not undo the committed cancellation.
	if rtoRequired && s.rto != nil {
		if err := s.rto.CreateRTO(ctx, cancelled.ID); err != nil {
			warnCtx := s.logger.WithOrderID(ctx, cancelled.ID.String())
			s.logger.Warn(warnCtx, "rto shipment creation failed: "+err.Error())
		}
	}

	return cancelled, nil
}

func (s *service) ApproveCancellation(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var approved *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled orders can be approved for refund")
		}
		if order.PaymentMethod != enums.PaymentMethodOnline || order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid online orders require a refund")
		}
		if order.RefundStatus != enums.RefundStatusNone {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already in progress")
		}

		order.RefundStatus = enums.RefundStatusPending
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "approving cancellation")
		}
		approved = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	if input.Actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if s.refunder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment refunds are not configured")
	}

	order, err := s.findOrder(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodOnline || order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid online orders can be refunded")
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway payment reference")
	}

	amount := input.AmountCents
	if amount <= 0 {
		amount = int64(order.TotalCents)
	}
	if amount > int64(order.TotalCents) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds order total")
	}

	// Gateway refund happens before the local mutation; a failed refund
	// leaves the order untouched.
	refundID, err := s.refunder.Refund(ctx, *order.GatewayPaymentID, amount)
	if err != nil {
		return nil, err
	}

	var refunded *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}

		order.PaymentStatus = enums.PaymentStatusRefunded
		order.RefundStatus = enums.RefundStatusProcessed
		order.RefundedCents = int(amount)

		var clawback int64
		if order.SellerCredited && order.SellerEarningsCents != nil && *order.SellerEarningsCents > 0 {
			clawback = int64(*order.SellerEarningsCents)
			orderID := order.ID
			if _, err := s.wallet.Debit(ctx, tx, wallet.MovementInput{
				SellerID:    order.SellerID,
				AmountCents: clawback,
				Reason:      "refund clawback",
				OrderID:     &orderID,
			}); err != nil {
				return err
			}
		}

		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording refund")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: enums.ActorRoleAdmin},
			Data: OrderRefundedEvent{
				OrderID:       order.ID,
				SellerID:      order.SellerID,
				RefundedCents: amount,
				ClawbackCents: clawback,
				GatewayRefund: refundID,
			},
		}); err != nil {
			return err
		}

		refunded = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func (s *service) findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func authorizeOrderAccess(order *models.Order, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch {
	case actor.Role == enums.ActorRoleAdmin:
		return nil
	case order.BuyerID == actor.UserID:
		return nil
	case order.SellerID == actor.UserID:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
}

func authorizeSellerMutation(order *models.Order, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role == enums.ActorRoleAdmin {
		return nil
	}
	if actor.Role == enums.ActorRoleSeller && order.SellerID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the selling vendor or an admin can update this order")
}
