package payments

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/paygate"
)

// gateway is the slice of the paygate client this service needs.
type gateway interface {
	CreateOrder(ctx context.Context, params paygate.OrderCreateParams) (*paygate.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*paygate.Payment, error)
	RefundPayment(ctx context.Context, paymentID string, amountCents int64) (*paygate.Refund, error)
	VerifyPaymentSignature(orderRef, paymentRef, signature string) bool
}

// Service fronts the payment gateway for checkout. Verification is
// two-step: the callback signature must check out and the gateway must
// report the payment as captured.
type Service interface {
	CreateOrder(ctx context.Context, amountCents int64, receipt string) (*paygate.GatewayOrder, error)
	Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error
	Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (string, error)
	Status(ctx context.Context, gatewayPaymentID string) (*paygate.Payment, error)
}

type service struct {
	gateway gateway
	logger  *logger.Logger
}

func NewService(gw gateway, logg *logger.Logger) (Service, error) {
	if gw == nil {
		return nil, fmt.Errorf("payments service requires a gateway client")
	}
	if logg == nil {
		return nil, fmt.Errorf("payments service requires a logger")
	}
	return &service{gateway: gw, logger: logg}, nil
}

func (s *service) CreateOrder(ctx context.Context, amountCents int64, receipt string) (*paygate.GatewayOrder, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	order, err := s.gateway.CreateOrder(ctx, paygate.OrderCreateParams{
		AmountCents: amountCents,
		Receipt:     receipt,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithField(ctx, "gateway_order_id", order.ID), "gateway order created")
	return order, nil
}

func (s *service) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	if strings.TrimSpace(gatewayOrderID) == "" || strings.TrimSpace(gatewayPaymentID) == "" || strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "missing payment verification fields")
	}
	if !s.gateway.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature) {
		s.logger.Warn(s.logger.WithField(ctx, "gateway_order_id", gatewayOrderID), "payment signature mismatch")
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature mismatch")
	}
	payment, err := s.gateway.FetchPayment(ctx, gatewayPaymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment lookup failed")
	}
	if payment.Status != paygate.PaymentStatusCaptured {
		return pkgerrors.New(pkgerrors.CodePaymentVerification,
			fmt.Sprintf("payment not captured: %s", payment.Status))
	}
	if payment.OrderID != "" && payment.OrderID != gatewayOrderID {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment belongs to a different gateway order")
	}
	return nil
}

func (s *service) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (string, error) {
	if strings.TrimSpace(gatewayPaymentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id is required")
	}
	refund, err := s.gateway.RefundPayment(ctx, gatewayPaymentID, amountCents)
	if err != nil {
		return "", err
	}
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"gateway_payment_id": gatewayPaymentID,
		"refund_id":          refund.ID,
	})
	s.logger.Info(logCtx, "gateway refund issued")
	return refund.ID, nil
}

func (s *service) Status(ctx context.Context, gatewayPaymentID string) (*paygate.Payment, error) {
	if strings.TrimSpace(gatewayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id is required")
	}
	return s.gateway.FetchPayment(ctx, gatewayPaymentID)
}
