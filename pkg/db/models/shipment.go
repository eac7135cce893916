package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/types"
)

// Shipment is the carrier-side sub-record of an order. StatusCode holds the
// raw carrier code; the normalized states live on the order itself.
type Shipment struct {
	ID                  uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CarrierShipmentID   *string              `gorm:"column:carrier_shipment_id;index"`
	AWB                 *string              `gorm:"column:awb;index"`
	CourierName         *string              `gorm:"column:courier_name"`
	StatusCode          string               `gorm:"column:status_code;not null;default:''"`
	StatusDescription   string               `gorm:"column:status_description;not null;default:''"`
	IsReturning         bool                 `gorm:"column:is_returning;not null;default:false"`
	ForwardChargeCents  int                  `gorm:"column:forward_charge_cents;not null;default:0"`
	LabelURL            *string              `gorm:"column:label_url"`
	PickupScheduledAt   *time.Time           `gorm:"column:pickup_scheduled_at"`
	ReverseShipmentID   *string              `gorm:"column:reverse_shipment_id"`
	Events              types.ShipmentEvents `gorm:"column:events;type:jsonb;serializer:json"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
