package courierwebhook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// Repository resolves carrier references to orders and return requests and
// persists the state derived from webhook payloads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, number int64) (*models.Order, error)
	FindOrderByShipmentID(ctx context.Context, carrierShipmentID string) (*models.Order, error)
	FindOrderByAWB(ctx context.Context, awb string) (*models.Order, error)
	FindReturnByReverseRef(ctx context.Context, shipmentID, awb string) (*models.ReturnRequest, error)
	SaveShipment(ctx context.Context, shipment *models.Shipment) error
	UpdateOrder(ctx context.Context, order *models.Order) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Shipment").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByNumber(ctx context.Context, number int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Shipment").
		First(&order, "order_number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByShipmentID(ctx context.Context, carrierShipmentID string) (*models.Order, error) {
	return r.findOrderByShipmentColumn(ctx, "shipments.carrier_shipment_id = ?", carrierShipmentID)
}

func (r *repository) FindOrderByAWB(ctx context.Context, awb string) (*models.Order, error) {
	return r.findOrderByShipmentColumn(ctx, "shipments.awb = ?", awb)
}

func (r *repository) findOrderByShipmentColumn(ctx context.Context, condition string, value string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Joins("JOIN shipments ON shipments.order_id = orders.id").
		Where(condition, value).
		Preload("Items").
		Preload("Shipment").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindReturnByReverseRef matches reverse-leg events to the open return
// request carrying the reverse shipment id or AWB.
func (r *repository) FindReturnByReverseRef(ctx context.Context, shipmentID, awb string) (*models.ReturnRequest, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", []enums.ReturnStatus{
			enums.ReturnStatusRequested,
			enums.ReturnStatusApproved,
			enums.ReturnStatusPicked,
		})
	switch {
	case shipmentID != "" && awb != "":
		query = query.Where("reverse_shipment_id = ? OR reverse_awb = ?", shipmentID, awb)
	case shipmentID != "":
		query = query.Where("reverse_shipment_id = ?", shipmentID)
	case awb != "":
		query = query.Where("reverse_awb = ?", awb)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	var request models.ReturnRequest
	if err := query.First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) SaveShipment(ctx context.Context, shipment *models.Shipment) error {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(shipment).Error
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Shipment").Save(order).Error
}
