package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// Repository loads orders with their shipment sub-records and persists
// shipment state coming back from the carrier.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	UpdateShipment(ctx context.Context, shipment *models.Shipment) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error)
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

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
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

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) UpdateShipment(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Shipment").Save(order).Error
}

// ListActiveShipments returns shipments with an AWB whose order is still in
// flight, oldest first. The tracking poller walks these.
func (r *repository) ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 100
	}
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = shipments.order_id").
		Where("shipments.awb IS NOT NULL").
		Where("orders.status NOT IN ?", []enums.OrderStatus{
			enums.OrderStatusDelivered,
			enums.OrderStatusCancelled,
		}).
		Order("shipments.updated_at ASC").
		Limit(limit).
		Find(&shipments).Error
	return shipments, err
}
