package orders

import (
	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

// CheckoutItem is one requested product line. When the list is empty the
// buyer's persisted cart is used instead.
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// CheckoutInput carries everything needed to split a cart into per-seller
// orders. The gateway fields are required for online payments only.
type CheckoutInput struct {
	BuyerID            uuid.UUID
	PaymentMethod      enums.PaymentMethod
	Items              []CheckoutItem
	ShippingAddress    types.Address
	CouponCode         string
	DiscountCents      int64
	ShippingPriceCents int64
	TaxCents           int64

	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// UpdateStatusInput is a seller or admin driven status transition.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Actor   Actor
}

// CancelInput cancels an order with an auditable reason.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}

// RefundInput executes a gateway refund plus earnings clawback. A zero
// amount refunds the full order total.
type RefundInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Actor       Actor
}

// OrderCreatedEvent is emitted per seller order at checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int64               `json:"total_cents"`
	Status        enums.OrderStatus   `json:"status"`
}

// OrderStatusChangedEvent is emitted on any status transition.
type OrderStatusChangedEvent struct {
	OrderID  uuid.UUID         `json:"order_id"`
	SellerID uuid.UUID         `json:"seller_id"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
}

// SellerCreditedEvent is emitted when delivery releases seller earnings.
type SellerCreditedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	EarningsCents int64     `json:"earnings_cents"`
}

// OrderCancelledEvent is emitted when an order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	Reason      string          `json:"reason"`
	CancelledBy enums.ActorRole `json:"cancelled_by"`
	RTORequired bool            `json:"rto_required"`
}

// OrderRefundedEvent is emitted after a successful gateway refund.
type OrderRefundedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	RefundedCents  int64     `json:"refunded_cents"`
	ClawbackCents  int64     `json:"clawback_cents"`
	GatewayRefund  string    `json:"gateway_refund_id,omitempty"`
}
