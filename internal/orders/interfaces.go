package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/wallet"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
)

// Repository manages persistence for orders and the checkout-adjacent
// tables (cart, products, coupons).
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	UpdateShipment(ctx context.Context, shipment *models.Shipment) error
	// MarkSellerCredited flips the credited flag iff it is still unset and
	// reports whether this call won the flip.
	MarkSellerCredited(ctx context.Context, orderID uuid.UUID) (bool, error)

	ListCartItems(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	ClearCart(ctx context.Context, buyerID uuid.UUID) error

	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	// DecrementStock conditionally reduces stock and reports whether the
	// product had enough units.
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error

	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// RedeemCoupon consumes one use and records the buyer redemption;
	// returns false when the usage limit is exhausted or the buyer already
	// redeemed it.
	RedeemCoupon(ctx context.Context, couponID, buyerID uuid.UUID, orderID *uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// walletLedger moves seller money inside the caller's transaction.
type walletLedger interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error)
}

// PaymentVerifier confirms an online payment before order creation.
type PaymentVerifier interface {
	Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error
}

// PaymentRefunder executes a gateway refund for a captured payment.
type PaymentRefunder interface {
	Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (string, error)
}

// ShipmentBooker books a forward shipment after order creation; failures
// are non-fatal for checkout.
type ShipmentBooker interface {
	BookForOrder(ctx context.Context, orderID uuid.UUID) error
}

// RTOCreator books a carrier-side return-to-origin shipment after a
// dispatched order is cancelled; failures are non-fatal.
type RTOCreator interface {
	CreateRTO(ctx context.Context, orderID uuid.UUID) error
}
