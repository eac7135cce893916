package courierwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/metrics"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
)

// Delivery outcomes reported to metrics.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// replayTTL bounds how long a carrier event id blocks redelivery.
const replayTTL = 48 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderCrediter releases seller earnings when a delivery lands.
type orderCrediter interface {
	CreditOnDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// returnLifecycle advances return requests off reverse-leg carrier events.
type returnLifecycle interface {
	MarkPicked(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ApplyActualFreight(ctx context.Context, tx *gorm.DB, id uuid.UUID, actualCents int64) error
	ApplyRTOCharge(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// replayGuard deduplicates redelivered carrier events.
type replayGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(carrier, eventID string) string
}

// ShipmentUpdatedEvent is the outbox payload for an applied carrier event.
type ShipmentUpdatedEvent struct {
	OrderID        uuid.UUID            `json:"orderId"`
	StatusCode     string               `json:"statusCode"`
	OrderStatus    enums.OrderStatus    `json:"orderStatus"`
	ShippingStatus enums.ShippingStatus `json:"shippingStatus"`
	IsReturning    bool                 `json:"isReturning"`
}

type Service interface {
	// Handle ingests one carrier push and returns the metrics outcome. An
	// error accompanies only structurally invalid payloads and internal
	// failures; unknown references are acknowledged.
	Handle(ctx context.Context, carrierName string, body []byte) (string, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	orders  orderCrediter
	returns returnLifecycle
	guard   replayGuard
	metrics *metrics.WebhookMetrics
	logger  *logger.Logger
}

// Deps bundles the service dependencies. Guard and Metrics are optional;
// without a guard every delivery is processed (application stays idempotent
// through the monotonic status rules).
type Deps struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Orders  orderCrediter
	Returns returnLifecycle
	Guard   replayGuard
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, errors.New("courier webhook service requires a repository")
	}
	if deps.Tx == nil {
		return nil, errors.New("courier webhook service requires a transaction runner")
	}
	if deps.Outbox == nil {
		return nil, errors.New("courier webhook service requires an outbox publisher")
	}
	if deps.Orders == nil {
		return nil, errors.New("courier webhook service requires the order crediter")
	}
	if deps.Returns == nil {
		return nil, errors.New("courier webhook service requires the return lifecycle")
	}
	if deps.Logger == nil {
		return nil, errors.New("courier webhook service requires a logger")
	}
	return &service{
		repo:    deps.Repo,
		tx:      deps.Tx,
		outbox:  deps.Outbox,
		orders:  deps.Orders,
		returns: deps.Returns,
		guard:   deps.Guard,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}, nil
}

func (s *service) Handle(ctx context.Context, carrierName string, body []byte) (string, error) {
	outcome, err := s.handle(ctx, carrierName, body)
	s.metrics.Inc(carrierName, outcome)
	return outcome, err
}

func (s *service) handle(ctx context.Context, carrierName string, body []byte) (string, error) {
	payload, err := ParsePayload(body)
	if err != nil {
		return OutcomeInvalid, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode carrier payload")
	}
	if !payload.HasReference() {
		s.logger.Warn(s.logger.WithField(ctx, "carrier", carrierName), "carrier payload carries no reference, acknowledged")
		return OutcomeUnmatched, nil
	}

	if duplicate, err := s.seenBefore(ctx, carrierName, payload.EventID); err == nil && duplicate {
		return OutcomeDuplicate, nil
	}

	order, err := s.resolveOrder(ctx, payload)
	if err != nil {
		s.releaseClaim(ctx, carrierName, payload.EventID)
		return OutcomeError, err
	}
	if order != nil {
		if err := s.applyToOrder(ctx, order, payload, body); err != nil {
			s.releaseClaim(ctx, carrierName, payload.EventID)
			return OutcomeError, err
		}
		return OutcomeApplied, nil
	}

	request, err := s.resolveReturn(ctx, payload)
	if err != nil {
		s.releaseClaim(ctx, carrierName, payload.EventID)
		return OutcomeError, err
	}
	if request != nil {
		if err := s.applyToReturn(ctx, request, payload, body); err != nil {
			s.releaseClaim(ctx, carrierName, payload.EventID)
			return OutcomeError, err
		}
		return OutcomeApplied, nil
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"carrier":     carrierName,
		"shipment_id": payload.ShipmentID,
		"awb":         payload.AWB,
	})
	s.logger.Info(logCtx, "carrier event matched no order, acknowledged")
	return OutcomeUnmatched, nil
}

// seenBefore marks the event id and reports replays. Guard outages degrade
// to processing the delivery; status application stays monotonic anyway.
func (s *service) seenBefore(ctx context.Context, carrierName, eventID string) (bool, error) {
	if s.guard == nil || eventID == "" {
		return false, nil
	}
	key := s.guard.WebhookEventKey(carrierName, eventID)
	set, err := s.guard.SetNX(ctx, key, "1", replayTTL)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "event_id", eventID), "webhook replay guard unavailable: "+err.Error())
		return false, err
	}
	return !set, nil
}

// releaseClaim frees the replay key after a failed apply so the carrier's
// redelivery of the same event is processed instead of dropped.
func (s *service) releaseClaim(ctx context.Context, carrierName, eventID string) {
	if s.guard == nil || eventID == "" {
		return
	}
	key := s.guard.WebhookEventKey(carrierName, eventID)
	if err := s.guard.Del(ctx, key); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "event_id", eventID), "webhook replay key release failed: "+err.Error())
	}
}

// resolveOrder tries the reference keys from most to least specific.
func (s *service) resolveOrder(ctx context.Context, payload *Payload) (*models.Order, error) {
	if payload.ShipmentID != "" {
		order, err := s.repo.FindOrderByShipmentID(ctx, payload.ShipmentID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order by shipment id")
		}
	}
	if payload.OrderID != "" {
		if orderID, err := uuid.Parse(payload.OrderID); err == nil {
			order, err := s.repo.FindOrderByID(ctx, orderID)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order by id")
			}
		}
	}
	if number, ok := payload.OrderNumber(); ok {
		order, err := s.repo.FindOrderByNumber(ctx, number)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order by number")
		}
	}
	if payload.AWB != "" {
		order, err := s.repo.FindOrderByAWB(ctx, payload.AWB)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order by awb")
		}
	}
	return nil, nil
}

func (s *service) resolveReturn(ctx context.Context, payload *Payload) (*models.ReturnRequest, error) {
	if payload.ShipmentID == "" && payload.AWB == "" {
		return nil, nil
	}
	request, err := s.repo.FindReturnByReverseRef(ctx, payload.ShipmentID, payload.AWB)
	if err == nil {
		return request, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve return by reverse refs")
}

// applyToOrder persists the event and the derived state in one transaction.
// Delivered orders never regress; every payload lands in the event log.
func (s *service) applyToOrder(ctx context.Context, order *models.Order, payload *Payload, raw []byte) error {
	normalized := courier.NormalizeStatusCode(payload.CurrentStatus)
	mapping := courier.MapStatus(payload.CurrentStatus)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		shipment := order.Shipment
		if shipment == nil {
			shipment = &models.Shipment{OrderID: order.ID}
		}
		eventType := normalized
		if eventType == "" {
			eventType = "carrier_event"
		}
		shipment.Events = shipment.Events.Append(eventType, payload.Timestamp, json.RawMessage(raw))
		if normalized != "" {
			shipment.StatusCode = normalized
		}
		if payload.Description != "" {
			shipment.StatusDescription = payload.Description
		}
		if mapping.IsReturning {
			shipment.IsReturning = true
		}
		if err := repo.SaveShipment(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving shipment")
		}

		delivered := false
		if normalized != "" && !order.Status.IsTerminal() {
			if order.Status != mapping.OrderStatus || order.ShippingStatus != mapping.ShippingStatus {
				order.Status = mapping.OrderStatus
				order.ShippingStatus = mapping.ShippingStatus
				if err := repo.UpdateOrder(ctx, order); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
				}
			}
			delivered = mapping.OrderStatus == enums.OrderStatusDelivered
		}

		if delivered {
			if err := s.orders.CreditOnDelivery(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		if normalized == "rto_delivered" {
			if err := s.returns.ApplyRTOCharge(ctx, tx, order); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentUpdated,
			AggregateType: enums.AggregateShipment,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
			Data: ShipmentUpdatedEvent{
				OrderID:        order.ID,
				StatusCode:     shipment.StatusCode,
				OrderStatus:    order.Status,
				ShippingStatus: order.ShippingStatus,
				IsReturning:    shipment.IsReturning,
			},
		})
	})
}

// applyToReturn advances the return request off the reverse leg: pickup
// marks it picked, delivery back at the seller completes it. The payload is
// still logged on the order's shipment for audit.
func (s *service) applyToReturn(ctx context.Context, request *models.ReturnRequest, payload *Payload, raw []byte) error {
	normalized := courier.NormalizeStatusCode(payload.CurrentStatus)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderByID(ctx, request.OrderID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading return order")
		}
		if order != nil && order.Shipment != nil {
			eventType := "reverse_" + normalized
			if normalized == "" {
				eventType = "reverse_carrier_event"
			}
			order.Shipment.Events = order.Shipment.Events.Append(eventType, payload.Timestamp, json.RawMessage(raw))
			if err := repo.SaveShipment(ctx, order.Shipment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving reverse event")
			}
		}

		if payload.FreightCents > 0 {
			if err := s.returns.ApplyActualFreight(ctx, tx, request.ID, payload.FreightCents); err != nil {
				return err
			}
		}

		switch normalized {
		case "picked_up", "shipped", "in_transit":
			if request.Status == enums.ReturnStatusApproved {
				return s.returns.MarkPicked(ctx, tx, request.ID)
			}
		case "delivered":
			if request.Status != enums.ReturnStatusCompleted {
				return s.returns.Complete(ctx, tx, request.ID)
			}
		}
		return nil
	})
}
