package orders

import (
	"net/http"
	"strings"

	"github.com/threadkart/marketplace-backend/api/controllers"
	"github.com/threadkart/marketplace-backend/api/responses"
	"github.com/threadkart/marketplace-backend/api/validators"
	internalorders "github.com/threadkart/marketplace-backend/internal/orders"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
	"github.com/threadkart/marketplace-backend/pkg/types"
)

type checkoutRequest struct {
	Items              []internalorders.CheckoutItem `json:"items" validate:"omitempty,dive"`
	ShippingAddress    types.Address                 `json:"shipping_address" validate:"required"`
	CouponCode         string                        `json:"coupon_code"`
	DiscountCents      int64                         `json:"discount_cents" validate:"gte=0"`
	ShippingPriceCents int64                         `json:"shipping_price_cents" validate:"gte=0"`
	TaxCents           int64                         `json:"tax_cents" validate:"gte=0"`

	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// Checkout creates COD orders, one per seller in the cart.
func Checkout(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return checkout(svc, logg, enums.PaymentMethodCOD)
}

// CheckoutWithPayment creates online orders after the gateway payment is
// verified and captured.
func CheckoutWithPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return checkout(svc, logg, enums.PaymentMethodOnline)
}

func checkout(svc internalorders.Service, logg *logger.Logger, method enums.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if method == enums.PaymentMethodOnline {
			if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePaymentVerification, "gateway order id, payment id and signature are required"))
				return
			}
		}

		created, err := svc.Checkout(r.Context(), internalorders.CheckoutInput{
			BuyerID:            buyerID,
			PaymentMethod:      method,
			Items:              req.Items,
			ShippingAddress:    req.ShippingAddress,
			CouponCode:         validators.SanitizeString(req.CouponCode, 64),
			DiscountCents:      req.DiscountCents,
			ShippingPriceCents: req.ShippingPriceCents,
			TaxCents:           req.TaxCents,
			GatewayOrderID:     req.GatewayOrderID,
			GatewayPaymentID:   req.GatewayPaymentID,
			Signature:          req.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// List returns the caller's orders: buyers see their purchases, sellers
// their sales.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := controllers.PaginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch role {
		case enums.ActorRoleSeller:
			list, err := svc.ListForSeller(r.Context(), userID, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, controllers.PageOf(list, params, orderCursor))
		default:
			list, err := svc.ListForBuyer(r.Context(), userID, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, controllers.PageOf(list, params, orderCursor))
		}
	}
}

func orderCursor(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// Detail returns one order after an ownership check.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := controllers.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, internalorders.Actor{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus transitions an order forward (seller or admin).
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := controllers.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
			Actor:   internalorders.Actor{UserID: userID, Role: role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Cancel cancels an order with an auditable reason.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := controllers.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: orderID,
			Reason:  validators.SanitizeString(req.Reason, 500),
			Actor:   internalorders.Actor{UserID: userID, Role: role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ApproveCancellation is the admin step that opens a refund for online
// orders after a buyer cancellation.
func ApproveCancellation(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := controllers.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ApproveCancellation(r.Context(), orderID, internalorders.Actor{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type refundRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"gte=0"`
}

// Refund executes the gateway refund and claws back credited earnings.
func Refund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := controllers.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), internalorders.RefundInput{
			OrderID:     orderID,
			AmountCents: req.AmountCents,
			Actor:       internalorders.Actor{UserID: userID, Role: role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
