package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// ReturnRequest is one return or replacement claim against a delivered
// order. At most one open request may exist per (buyer, order).
//
// The allocation columns record how the return shipping charge was split.
// AllocationApplied guards the wallet debits: the split is applied at most
// once even when approval is retried.
type ReturnRequest struct {
	ID                  uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID             uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	OrderID             uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	SellerID            uuid.UUID                `gorm:"column:seller_id;type:uuid;not null;index"`
	Type                enums.ReturnType         `gorm:"column:type;type:text;not null"`
	ReasonCategory      enums.ReturnReason       `gorm:"column:reason_category;type:text;not null"`
	ReasonText          string                   `gorm:"column:reason_text;not null;default:''"`
	RefundDestination   json.RawMessage          `gorm:"column:refund_destination;type:jsonb"`
	Status              enums.ReturnStatus       `gorm:"column:status;type:text;not null;default:'requested'"`
	ReverseShipmentID   *string                  `gorm:"column:reverse_shipment_id"`
	ReverseAWB          *string                  `gorm:"column:reverse_awb"`
	ForwardChargeCents  int                      `gorm:"column:forward_charge_cents;not null;default:0"`
	ReturnChargeCents   int                      `gorm:"column:return_charge_cents;not null;default:0"`
	AllocationScenario  *enums.AllocationScenario `gorm:"column:allocation_scenario;type:text"`
	VendorChargeCents   int                      `gorm:"column:vendor_charge_cents;not null;default:0"`
	PlatformChargeCents int                      `gorm:"column:platform_charge_cents;not null;default:0"`
	AllocationApplied   bool                     `gorm:"column:allocation_applied;not null;default:false"`
	AllocationAppliedAt *time.Time               `gorm:"column:allocation_applied_at"`
	RejectedAt          *time.Time               `gorm:"column:rejected_at"`
	CompletedAt         *time.Time               `gorm:"column:completed_at"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
