package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

// Order is the per-seller aggregate produced by splitting a checkout cart.
// Orders are never physically deleted; carrier payloads accumulate in the
// shipment event log for audit.
//
// Invariants:
//   - TotalCents == ItemsPriceCents + ShippingPriceCents + TaxCents - DiscountCents
//   - CommissionCents + SellerEarningsCents == ItemsPriceCents when both are set
type Order struct {
	ID                  uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         int64               `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID             uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID            uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status              enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ShippingStatus      enums.ShippingStatus `gorm:"column:shipping_status;type:text;not null;default:'pending'"`
	RefundStatus        enums.RefundStatus  `gorm:"column:refund_status;type:text;not null;default:'none'"`
	ItemsPriceCents     int                 `gorm:"column:items_price_cents;not null"`
	ShippingPriceCents  int                 `gorm:"column:shipping_price_cents;not null;default:0"`
	TaxCents            int                 `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents       int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int                 `gorm:"column:total_cents;not null"`
	CommissionCents     *int                `gorm:"column:commission_cents"`
	SellerEarningsCents *int                `gorm:"column:seller_earnings_cents"`
	SellerCredited      bool                `gorm:"column:seller_credited;not null;default:false"`
	CouponCode          *string             `gorm:"column:coupon_code"`
	ShippingAddress     *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	GatewayOrderID      *string             `gorm:"column:gateway_order_id"`
	GatewayPaymentID    *string             `gorm:"column:gateway_payment_id"`
	RefundedCents       int                 `gorm:"column:refunded_cents;not null;default:0"`
	CancelReason        *string             `gorm:"column:cancel_reason"`
	CancelledBy         *enums.ActorRole    `gorm:"column:cancelled_by;type:text"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt         *time.Time          `gorm:"column:delivered_at"`
	Items               []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment            *Shipment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
