package returns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/pricing"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletLedger interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error)
}

// reversePickupBooker is the carrier slice used to collect a return parcel
// from the buyer.
type reversePickupBooker interface {
	CreateReverseShipment(ctx context.Context, params courier.ReverseShipmentParams) (*courier.Shipment, error)
	PickupName() string
}

// Actor identifies who is invoking a return operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// CreateInput opens a return or replacement claim against a delivered order.
type CreateInput struct {
	BuyerID           uuid.UUID
	OrderID           uuid.UUID
	Type              enums.ReturnType
	ReasonCategory    enums.ReturnReason
	ReasonText        string
	RefundDestination json.RawMessage
}

// ReturnChargeAppliedEvent is the outbox payload emitted when the vendor and
// platform shares of a return charge are settled.
type ReturnChargeAppliedEvent struct {
	ReturnRequestID     uuid.UUID                `json:"return_request_id"`
	OrderID             uuid.UUID                `json:"order_id"`
	SellerID            uuid.UUID                `json:"seller_id"`
	Scenario            enums.AllocationScenario `json:"scenario"`
	ReturnChargeCents   int                      `json:"return_charge_cents"`
	VendorChargeCents   int                      `json:"vendor_charge_cents"`
	PlatformChargeCents int                      `json:"platform_charge_cents"`
}

type returnDecisionEvent struct {
	ReturnRequestID uuid.UUID          `json:"return_request_id"`
	OrderID         uuid.UUID          `json:"order_id"`
	Status          enums.ReturnStatus `json:"status"`
	Reason          string             `json:"reason,omitempty"`
}

// Service owns the return-request state machine. Approval settles the
// return shipping charge between vendor and platform exactly once and books
// the reverse pickup; carrier failures degrade to warnings.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error)
	Approve(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*models.ReturnRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error)
	BookReversePickup(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error)
	MarkPicked(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ApplyActualFreight(ctx context.Context, tx *gorm.DB, id uuid.UUID, actualCents int64) error
	ApplyRTOCharge(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type Deps struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Wallet       walletLedger
	Carrier      reversePickupBooker
	ReturnWindow time.Duration
	Logger       *logger.Logger
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	wallet       walletLedger
	carrier      reversePickupBooker
	returnWindow time.Duration
	logger       *logger.Logger
}

const defaultReturnWindow = 10 * 24 * time.Hour

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("returns service requires a repository")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("returns service requires a transaction runner")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("returns service requires an outbox publisher")
	}
	if deps.Wallet == nil {
		return nil, fmt.Errorf("returns service requires a wallet ledger")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("returns service requires a logger")
	}
	window := deps.ReturnWindow
	if window <= 0 {
		window = defaultReturnWindow
	}
	return &service{
		repo:         deps.Repo,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		wallet:       deps.Wallet,
		carrier:      deps.Carrier,
		returnWindow: window,
		logger:       deps.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	if input.BuyerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order are required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return type")
	}
	if !input.ReasonCategory.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reason category")
	}

	order, err := s.findOrder(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to a different buyer")
	}
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
	}
	if time.Since(*order.DeliveredAt) > s.returnWindow {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return window has closed")
	}
	if _, err := s.repo.FindOpenByOrder(ctx, order.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open return request already exists for this order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking open return requests")
	}

	request := &models.ReturnRequest{
		BuyerID:           input.BuyerID,
		OrderID:           order.ID,
		SellerID:          order.SellerID,
		Type:              input.Type,
		ReasonCategory:    input.ReasonCategory,
		ReasonText:        strings.TrimSpace(input.ReasonText),
		RefundDestination: input.RefundDestination,
		Status:            enums.ReturnStatusRequested,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating return request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer},
			Data: returnDecisionEvent{
				ReturnRequestID: request.ID,
				OrderID:         order.ID,
				Status:          request.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logger.WithOrderID(ctx, order.ID.String())
	logCtx = s.logger.WithField(logCtx, "return_request_id", request.ID.String())
	s.logger.Info(logCtx, "return request created")
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error) {
	request, err := s.findRequest(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(request, actor); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return s.repo.ListByBuyer(ctx, buyerID, params)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return s.repo.ListBySeller(ctx, sellerID, params)
}

// Approve settles the return charge and books the reverse pickup.
//
// The financial side runs first, inside one transaction, guarded by the
// allocation_applied flag so a retried approval never debits twice. The
// carrier call runs after commit: a pickup that fails to book leaves an
// approved request whose pickup can be re-attempted, never a half-settled
// charge.
func (s *service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can approve returns")
	}
	request, err := s.findRequest(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.ReturnStatusRequested {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot approve a return in state %s", request.Status))
	}
	order, err := s.findOrder(ctx, s.repo, request.OrderID)
	if err != nil {
		return nil, err
	}

	forwardCharge := 0
	if order.Shipment != nil {
		forwardCharge = order.Shipment.ForwardChargeCents
	}
	scenario := pricing.ResolveAllocationScenario(false, order.PaymentMethod, request.ReasonCategory, request.ReasonText)
	allocation, err := pricing.ComputeReturnChargeAllocation(int64(forwardCharge), scenario)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request.Status = enums.ReturnStatusApproved
		request.ForwardChargeCents = forwardCharge
		request.ReturnChargeCents = forwardCharge
		request.AllocationScenario = &scenario
		request.VendorChargeCents = int(allocation.VendorCents)
		request.PlatformChargeCents = int(allocation.PlatformCents)
		if err := repo.Update(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating return request")
		}

		if err := s.settleAllocation(ctx, tx, repo, request, allocation); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnApproved,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: returnDecisionEvent{
				ReturnRequestID: request.ID,
				OrderID:         request.OrderID,
				Status:          request.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.bookPickup(ctx, request, order)
	return request, nil
}

// settleAllocation debits the vendor share once. The platform share is an
// internal accounting entry, not a wallet movement.
func (s *service) settleAllocation(ctx context.Context, tx *gorm.DB, repo Repository, request *models.ReturnRequest, allocation pricing.ChargeAllocation) error {
	won, err := repo.MarkAllocationApplied(ctx, request.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming allocation")
	}
	if !won {
		s.logger.Warn(s.logger.WithField(ctx, "return_request_id", request.ID.String()),
			"allocation already applied, skipping settlement")
		return nil
	}
	if allocation.VendorCents > 0 {
		_, err = s.wallet.Debit(ctx, tx, wallet.MovementInput{
			SellerID:        request.SellerID,
			AmountCents:     allocation.VendorCents,
			Reason:          "return charge",
			OrderID:         &request.OrderID,
			ReturnRequestID: &request.ID,
		})
		if err != nil {
			return err
		}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReturnChargeApplied,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   request.ID,
		Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
		Data: ReturnChargeAppliedEvent{
			ReturnRequestID:     request.ID,
			OrderID:             request.OrderID,
			SellerID:            request.SellerID,
			Scenario:            *request.AllocationScenario,
			ReturnChargeCents:   request.ReturnChargeCents,
			VendorChargeCents:   request.VendorChargeCents,
			PlatformChargeCents: request.PlatformChargeCents,
		},
	})
}

// bookPickup books the reverse shipment after approval. Failure is logged
// and the request stays approved so the pickup can be re-attempted via the
// seller reverse-pickup endpoint.
func (s *service) bookPickup(ctx context.Context, request *models.ReturnRequest, order *models.Order) {
	if s.carrier == nil {
		return
	}
	if order.ShippingAddress == nil {
		s.logger.Warn(s.logger.WithField(ctx, "return_request_id", request.ID.String()),
			"order has no shipping address, reverse pickup skipped")
		return
	}
	params := courier.ReverseShipmentParams{
		OrderRef:       strconv.FormatInt(order.OrderNumber, 10),
		PickupLocation: s.carrier.PickupName(),
		Pickup:         reverseAddress(*order.ShippingAddress),
		Items:          reverseItems(order.Items),
		WeightKG:       0.5,
	}
	if order.Shipment != nil && order.Shipment.AWB != nil {
		params.ForwardAWB = *order.Shipment.AWB
	}
	reverse, err := s.carrier.CreateReverseShipment(ctx, params)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "return_request_id", request.ID.String()),
			"reverse pickup booking failed: "+err.Error())
		return
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if reverse.ShipmentID != "" {
			request.ReverseShipmentID = &reverse.ShipmentID
		}
		if reverse.AWB != "" {
			request.ReverseAWB = &reverse.AWB
		}
		if err := repo.Update(ctx, request); err != nil {
			return err
		}
		// The carrier quoted the actual reverse freight; re-derive the
		// split while keeping vendor+platform == charge.
		if reverse.FreightCents > 0 && reverse.FreightCents != int64(request.ReturnChargeCents) {
			return s.reallocate(ctx, tx, repo, request, reverse.FreightCents)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "return_request_id", request.ID.String()),
			"persisting reverse pickup failed: "+err.Error())
	}
}

// BookReversePickup re-attempts the reverse pickup for an approved request.
func (s *service) BookReversePickup(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error) {
	request, err := s.findRequest(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.ActorRoleAdmin && !(actor.Role == enums.ActorRoleSeller && actor.UserID == request.SellerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to book this pickup")
	}
	if request.Status != enums.ReturnStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reverse pickup requires an approved return")
	}
	if request.ReverseShipmentID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "reverse pickup already booked")
	}
	if s.carrier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier integration is not configured")
	}
	order, err := s.findOrder(ctx, s.repo, request.OrderID)
	if err != nil {
		return nil, err
	}
	s.bookPickup(ctx, request, order)
	if request.ReverseShipmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reverse pickup booking failed")
	}
	return request, nil
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*models.ReturnRequest, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can reject returns")
	}
	request, err := s.findRequest(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.ReturnStatusRequested {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot reject a return in state %s", request.Status))
	}
	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request.Status = enums.ReturnStatusRejected
		request.RejectedAt = &now
		if err := repo.Update(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating return request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRejected,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: returnDecisionEvent{
				ReturnRequestID: request.ID,
				OrderID:         request.OrderID,
				Status:          request.Status,
				Reason:          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.ReturnRequest, error) {
	request, err := s.findRequest(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.ActorRoleAdmin && actor.UserID != request.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to cancel this return")
	}
	switch request.Status {
	case enums.ReturnStatusCompleted, enums.ReturnStatusRejected, enums.ReturnStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel a return in state %s", request.Status))
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request.Status = enums.ReturnStatusCancelled
		return s.repo.WithTx(tx).Update(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// MarkPicked advances an approved return once the carrier confirms pickup.
// Runs inside the caller's transaction (webhook ingress).
func (s *service) MarkPicked(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	request, err := s.findRequest(ctx, repo, id)
	if err != nil {
		return err
	}
	if request.Status != enums.ReturnStatusApproved {
		return nil
	}
	request.Status = enums.ReturnStatusPicked
	return repo.Update(ctx, request)
}

// Complete closes a picked return when the parcel reaches the seller.
func (s *service) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	request, err := s.findRequest(ctx, repo, id)
	if err != nil {
		return err
	}
	switch request.Status {
	case enums.ReturnStatusCompleted:
		return nil
	case enums.ReturnStatusApproved, enums.ReturnStatusPicked:
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot complete a return in state %s", request.Status))
	}
	now := time.Now().UTC()
	request.Status = enums.ReturnStatusCompleted
	request.CompletedAt = &now
	return repo.Update(ctx, request)
}

// ApplyActualFreight re-derives the vendor/platform split when the carrier
// reports the real reverse freight. The adjustment debits or credits the
// vendor by the delta so the ledger matches the new share.
func (s *service) ApplyActualFreight(ctx context.Context, tx *gorm.DB, id uuid.UUID, actualCents int64) error {
	repo := s.repo.WithTx(tx)
	request, err := s.findRequest(ctx, repo, id)
	if err != nil {
		return err
	}
	return s.reallocate(ctx, tx, repo, request, actualCents)
}

func (s *service) reallocate(ctx context.Context, tx *gorm.DB, repo Repository, request *models.ReturnRequest, actualCents int64) error {
	if actualCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "actual freight must be non-negative")
	}
	previous := pricing.ChargeAllocation{
		VendorCents:   int64(request.VendorChargeCents),
		PlatformCents: int64(request.PlatformChargeCents),
	}
	updated, err := pricing.ReallocateProportionally(actualCents, previous)
	if err != nil {
		return err
	}

	vendorDelta := updated.VendorCents - previous.VendorCents
	if request.AllocationApplied && vendorDelta != 0 {
		input := wallet.MovementInput{
			SellerID:        request.SellerID,
			AmountCents:     vendorDelta,
			Reason:          "return charge adjustment",
			OrderID:         &request.OrderID,
			ReturnRequestID: &request.ID,
		}
		if vendorDelta > 0 {
			_, err = s.wallet.Debit(ctx, tx, input)
		} else {
			input.AmountCents = -vendorDelta
			_, err = s.wallet.Credit(ctx, tx, input)
		}
		if err != nil {
			return err
		}
	}

	request.ReturnChargeCents = int(actualCents)
	request.VendorChargeCents = int(updated.VendorCents)
	request.PlatformChargeCents = int(updated.PlatformCents)
	return repo.Update(ctx, request)
}

// ApplyRTOCharge settles the return freight for an RTO'd order. Runs inside
// the webhook transaction when the carrier reports the parcel back with the
// seller. A completed ReturnRequest row records the allocation so the
// applied-once guard and audit trail work the same way as buyer returns.
func (s *service) ApplyRTOCharge(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)

	if existing, err := repo.FindOpenByOrder(ctx, order.ID); err == nil {
		// A buyer-initiated return owns the charge for this order.
		logCtx := s.logger.WithOrderID(ctx, order.ID.String())
		logCtx = s.logger.WithField(logCtx, "return_request_id", existing.ID.String())
		s.logger.Info(logCtx, "open return request exists, rto charge skipped")
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking open return requests")
	}

	forwardCharge := 0
	if order.Shipment != nil {
		forwardCharge = order.Shipment.ForwardChargeCents
	}
	scenario := pricing.ResolveAllocationScenario(true, order.PaymentMethod, enums.ReturnReasonOther, "")
	allocation, err := pricing.ComputeReturnChargeAllocation(int64(forwardCharge), scenario)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	request := &models.ReturnRequest{
		BuyerID:             order.BuyerID,
		OrderID:             order.ID,
		SellerID:            order.SellerID,
		Type:                enums.ReturnTypeReturn,
		ReasonCategory:      enums.ReturnReasonOther,
		ReasonText:          "return to origin",
		Status:              enums.ReturnStatusCompleted,
		ForwardChargeCents:  forwardCharge,
		ReturnChargeCents:   forwardCharge,
		AllocationScenario:  &scenario,
		VendorChargeCents:   int(allocation.VendorCents),
		PlatformChargeCents: int(allocation.PlatformCents),
		CompletedAt:         &now,
	}
	if err := repo.Create(ctx, request); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording rto charge")
	}
	return s.settleAllocation(ctx, tx, repo, request, allocation)
}

func (s *service) findRequest(ctx context.Context, repo Repository, id uuid.UUID) (*models.ReturnRequest, error) {
	request, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading return request")
	}
	return request, nil
}

func (s *service) findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func authorizeRead(request *models.ReturnRequest, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if actor.UserID == request.BuyerID {
			return nil
		}
	case enums.ActorRoleSeller:
		if actor.UserID == request.SellerID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this return request")
}

func reverseAddress(addr types.Address) courier.ShipmentAddress {
	out := courier.ShipmentAddress{
		Name:    addr.Name,
		Phone:   addr.Phone,
		Line1:   addr.Line1,
		City:    addr.City,
		State:   addr.State,
		Pincode: addr.PostalCode,
		Country: addr.Country,
	}
	if addr.Line2 != nil {
		out.Line2 = *addr.Line2
	}
	if out.Country == "" {
		out.Country = "India"
	}
	return out
}

func reverseItems(items []models.OrderItem) []courier.ShipmentItem {
	out := make([]courier.ShipmentItem, 0, len(items))
	for _, item := range items {
		out = append(out, courier.ShipmentItem{
			Name:           item.Name,
			SKU:            item.SKU,
			Units:          item.Qty,
			UnitPriceCents: int64(item.UnitPriceCents),
		})
	}
	return out
}
