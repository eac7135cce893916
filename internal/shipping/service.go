package shipping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

// defaultParcelWeightKG is used when no per-product weight is recorded.
const defaultParcelWeightKG = 0.5

type carrier interface {
	Rates(ctx context.Context, pickupPincode, deliveryPincode string, weightKG float64, cod bool) ([]courier.RateQuote, error)
	CreateShipment(ctx context.Context, params courier.ShipmentCreateParams) (*courier.Shipment, error)
	SchedulePickup(ctx context.Context, shipmentID string) (*courier.PickupResponse, error)
	CancelShipment(ctx context.Context, awb string) error
	GenerateLabel(ctx context.Context, shipmentID string) (*courier.LabelResponse, error)
	CreateReverseShipment(ctx context.Context, params courier.ReverseShipmentParams) (*courier.Shipment, error)
	TrackByAWB(ctx context.Context, awb string) (*courier.TrackResult, error)
	TrackByOrderRef(ctx context.Context, orderRef string) (*courier.TrackResult, error)
	NDRAction(ctx context.Context, awb, action, comment string) error
	PickupName() string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RateInput asks the carrier for serviceability between two pincodes.
type RateInput struct {
	PickupPincode   string  `json:"pickup_pincode" validate:"required"`
	DeliveryPincode string  `json:"delivery_pincode" validate:"required"`
	WeightKG        float64 `json:"weight_kg"`
	COD             bool    `json:"cod"`
}

// Service books forward and reverse shipments against the carrier and keeps
// the local shipment record in step. Every carrier payload lands in the
// shipment event log.
type Service interface {
	Rates(ctx context.Context, input RateInput) ([]courier.RateQuote, error)
	BookForOrder(ctx context.Context, orderID uuid.UUID) error
	CreateRTO(ctx context.Context, orderID uuid.UUID) error
	SchedulePickup(ctx context.Context, orderID uuid.UUID) (*courier.PickupResponse, error)
	CancelShipment(ctx context.Context, orderID uuid.UUID) error
	Label(ctx context.Context, orderID uuid.UUID) (string, error)
	Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackResult, error)
	NDRAction(ctx context.Context, orderID uuid.UUID, action, comment string) error
}

type service struct {
	repo    Repository
	tx      txRunner
	carrier carrier
	logger  *logger.Logger
}

type Deps struct {
	Repo    Repository
	Tx      txRunner
	Carrier carrier
	Logger  *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("shipping service requires a repository")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("shipping service requires a transaction runner")
	}
	if deps.Carrier == nil {
		return nil, fmt.Errorf("shipping service requires a carrier client")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("shipping service requires a logger")
	}
	return &service{
		repo:    deps.Repo,
		tx:      deps.Tx,
		carrier: deps.Carrier,
		logger:  deps.Logger,
	}, nil
}

func (s *service) Rates(ctx context.Context, input RateInput) ([]courier.RateQuote, error) {
	if input.PickupPincode == "" || input.DeliveryPincode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery pincodes are required")
	}
	weight := input.WeightKG
	if weight <= 0 {
		weight = defaultParcelWeightKG
	}
	return s.carrier.Rates(ctx, input.PickupPincode, input.DeliveryPincode, weight, input.COD)
}

// BookForOrder creates the forward shipment for an order. A second booking
// attempt for an order that already has a carrier shipment is rejected
// rather than retried, so a double-submitted dispatch cannot create two
// parcels.
func (s *service) BookForOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Shipment != nil && order.Shipment.CarrierShipmentID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "shipment already booked for this order")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot book a shipment for a cancelled order")
	}
	if order.ShippingAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping address")
	}

	params := courier.ShipmentCreateParams{
		OrderRef:      strconv.FormatInt(order.OrderNumber, 10),
		OrderDate:     order.CreatedAt,
		PaymentMethod: carrierPaymentMethod(order.PaymentMethod),
		SubTotalCents: int64(order.ItemsPriceCents),
		WeightKG:      defaultParcelWeightKG,
		Billing:       carrierAddress(*order.ShippingAddress),
		Shipping:      carrierAddress(*order.ShippingAddress),
		Items:         carrierItems(order.Items),
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		params.CODAmountCents = int64(order.TotalCents)
	}

	booked, err := s.carrier.CreateShipment(ctx, params)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		shipment := order.Shipment
		if shipment == nil {
			shipment = &models.Shipment{OrderID: order.ID}
		}
		shipment.CarrierShipmentID = nonEmpty(booked.ShipmentID)
		shipment.AWB = nonEmpty(booked.AWB)
		shipment.CourierName = nonEmpty(booked.CourierName)
		if booked.StatusCode != "" {
			shipment.StatusCode = courier.NormalizeStatusCode(booked.StatusCode)
		}
		shipment.LabelURL = nonEmpty(booked.LabelURL)
		shipment.ForwardChargeCents = int(booked.FreightCents)
		shipment.Events = shipment.Events.Append("shipment_booked", time.Time{}, nil)

		if shipment.ID == uuid.Nil {
			if err := repo.CreateShipment(ctx, shipment); err != nil {
				return err
			}
		} else if err := repo.UpdateShipment(ctx, shipment); err != nil {
			return err
		}

		if order.Status == enums.OrderStatusConfirmed {
			order.Status = enums.OrderStatusProcessing
			if err := repo.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}

		logCtx := s.logger.WithOrderID(ctx, order.ID.String())
		logCtx = s.logger.WithFields(logCtx, map[string]any{
			"carrier_shipment_id": booked.ShipmentID,
			"awb":                 booked.AWB,
		})
		s.logger.Info(logCtx, "forward shipment booked")
		return nil
	})
}

// CreateRTO books a reverse pickup returning a dispatched parcel to the
// seller. Used when an order is cancelled after dispatch.
func (s *service) CreateRTO(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	shipment := order.Shipment
	if shipment == nil || shipment.AWB == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no dispatched shipment to return")
	}
	if shipment.ReverseShipmentID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "reverse shipment already booked")
	}
	if order.ShippingAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping address")
	}

	reverse, err := s.carrier.CreateReverseShipment(ctx, courier.ReverseShipmentParams{
		OrderRef:       strconv.FormatInt(order.OrderNumber, 10),
		ForwardAWB:     *shipment.AWB,
		PickupLocation: s.carrier.PickupName(),
		Pickup:         carrierAddress(*order.ShippingAddress),
		Items:          carrierItems(order.Items),
		WeightKG:       defaultParcelWeightKG,
	})
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment.ReverseShipmentID = nonEmpty(reverse.ShipmentID)
		shipment.IsReturning = true
		shipment.StatusCode = "rto_initiated"
		shipment.Events = shipment.Events.Append("reverse_shipment_booked", time.Time{}, nil)
		if err := repo.UpdateShipment(ctx, shipment); err != nil {
			return err
		}
		logCtx := s.logger.WithOrderID(ctx, order.ID.String())
		logCtx = s.logger.WithField(logCtx, "reverse_shipment_id", reverse.ShipmentID)
		s.logger.Info(logCtx, "reverse shipment booked")
		return nil
	})
}

func (s *service) SchedulePickup(ctx context.Context, orderID uuid.UUID) (*courier.PickupResponse, error) {
	shipment, err := s.findBookedShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	pickup, err := s.carrier.SchedulePickup(ctx, *shipment.CarrierShipmentID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shipment.PickupScheduledAt = &pickup.PickupScheduledAt
		shipment.Events = shipment.Events.Append("pickup_scheduled", pickup.PickupScheduledAt, nil)
		return s.repo.WithTx(tx).UpdateShipment(ctx, shipment)
	})
	if err != nil {
		return nil, err
	}
	return pickup, nil
}

func (s *service) CancelShipment(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	shipment := order.Shipment
	if shipment == nil || shipment.AWB == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no dispatched shipment to cancel")
	}
	if err := s.carrier.CancelShipment(ctx, *shipment.AWB); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shipment.StatusCode = "cancelled"
		shipment.Events = shipment.Events.Append("shipment_cancelled", time.Time{}, nil)
		return s.repo.WithTx(tx).UpdateShipment(ctx, shipment)
	})
}

func (s *service) Label(ctx context.Context, orderID uuid.UUID) (string, error) {
	shipment, err := s.findBookedShipment(ctx, orderID)
	if err != nil {
		return "", err
	}
	if shipment.LabelURL != nil && *shipment.LabelURL != "" {
		return *shipment.LabelURL, nil
	}
	label, err := s.carrier.GenerateLabel(ctx, *shipment.CarrierShipmentID)
	if err != nil {
		return "", err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shipment.LabelURL = nonEmpty(label.LabelURL)
		return s.repo.WithTx(tx).UpdateShipment(ctx, shipment)
	})
	if err != nil {
		return "", err
	}
	return label.LabelURL, nil
}

func (s *service) Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackResult, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment != nil && order.Shipment.AWB != nil {
		return s.carrier.TrackByAWB(ctx, *order.Shipment.AWB)
	}
	return s.carrier.TrackByOrderRef(ctx, strconv.FormatInt(order.OrderNumber, 10))
}

func (s *service) NDRAction(ctx context.Context, orderID uuid.UUID, action, comment string) error {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Shipment == nil || order.Shipment.AWB == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no dispatched shipment")
	}
	if err := s.carrier.NDRAction(ctx, *order.Shipment.AWB, action, comment); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shipment := order.Shipment
		shipment.Events = shipment.Events.Append("ndr_"+action, time.Time{}, nil)
		return s.repo.WithTx(tx).UpdateShipment(ctx, shipment)
	})
}

func (s *service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) findBookedShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment == nil || order.Shipment.CarrierShipmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no shipment booked for this order")
	}
	return order.Shipment, nil
}

func carrierPaymentMethod(method enums.PaymentMethod) string {
	if method == enums.PaymentMethodCOD {
		return "COD"
	}
	return "Prepaid"
}

func carrierAddress(addr types.Address) courier.ShipmentAddress {
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

func carrierItems(items []models.OrderItem) []courier.ShipmentItem {
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

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
