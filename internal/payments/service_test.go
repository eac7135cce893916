package payments

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/paygate"
)

type stubGateway struct {
	payment      *paygate.Payment
	paymentErr   error
	refund       *paygate.Refund
	refundErr    error
	signatureOK  bool
	createdOrder *paygate.GatewayOrder
	createErr    error
}

func (g *stubGateway) CreateOrder(ctx context.Context, params paygate.OrderCreateParams) (*paygate.GatewayOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createdOrder, nil
}

func (g *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*paygate.Payment, error) {
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.payment, nil
}

func (g *stubGateway) RefundPayment(ctx context.Context, paymentID string, amountCents int64) (*paygate.Refund, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return g.refund, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderRef, paymentRef, signature string) bool {
	return g.signatureOK
}

func newTestService(t *testing.T, gw *stubGateway) Service {
	t.Helper()
	svc, err := NewService(gw, logger.New(logger.Options{ServiceName: "payments-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestVerify_AcceptsCapturedPayment(t *testing.T) {
	gw := &stubGateway{
		signatureOK: true,
		payment:     &paygate.Payment{ID: "pay_1", OrderID: "ord_1", Status: paygate.PaymentStatusCaptured},
	}
	svc := newTestService(t, gw)

	if err := svc.Verify(context.Background(), "ord_1", "pay_1", "sig"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_RejectsBadSignature(t *testing.T) {
	gw := &stubGateway{signatureOK: false}
	svc := newTestService(t, gw)

	err := svc.Verify(context.Background(), "ord_1", "pay_1", "sig")
	assertVerificationError(t, err)
}

func TestVerify_RejectsUncapturedPayment(t *testing.T) {
	gw := &stubGateway{
		signatureOK: true,
		payment:     &paygate.Payment{ID: "pay_1", OrderID: "ord_1", Status: paygate.PaymentStatusAuthorized},
	}
	svc := newTestService(t, gw)

	err := svc.Verify(context.Background(), "ord_1", "pay_1", "sig")
	assertVerificationError(t, err)
}

func TestVerify_RejectsForeignOrder(t *testing.T) {
	gw := &stubGateway{
		signatureOK: true,
		payment:     &paygate.Payment{ID: "pay_1", OrderID: "ord_other", Status: paygate.PaymentStatusCaptured},
	}
	svc := newTestService(t, gw)

	err := svc.Verify(context.Background(), "ord_1", "pay_1", "sig")
	assertVerificationError(t, err)
}

func TestVerify_WrapsGatewayLookupFailure(t *testing.T) {
	gw := &stubGateway{signatureOK: true, paymentErr: errors.New("timeout")}
	svc := newTestService(t, gw)

	err := svc.Verify(context.Background(), "ord_1", "pay_1", "sig")
	assertVerificationError(t, err)
}

func TestVerify_RejectsMissingFields(t *testing.T) {
	svc := newTestService(t, &stubGateway{signatureOK: true})
	assertVerificationError(t, svc.Verify(context.Background(), "", "pay_1", "sig"))
	assertVerificationError(t, svc.Verify(context.Background(), "ord_1", "", "sig"))
	assertVerificationError(t, svc.Verify(context.Background(), "ord_1", "pay_1", ""))
}

func TestRefund_ReturnsGatewayRefundID(t *testing.T) {
	gw := &stubGateway{refund: &paygate.Refund{ID: "rfnd_1"}}
	svc := newTestService(t, gw)

	id, err := svc.Refund(context.Background(), "pay_1", 5000)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if id != "rfnd_1" {
		t.Fatalf("refund id = %q", id)
	}
}

func TestCreateOrder_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, &stubGateway{})
	if _, err := svc.CreateOrder(context.Background(), 0, "rcpt_1"); err == nil {
		t.Fatal("expected validation error")
	}
}

func assertVerificationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected verification error")
	}
	derr := pkgerrors.As(err)
	if derr == nil || derr.Code() != pkgerrors.CodePaymentVerification {
		t.Fatalf("unexpected error: %v", err)
	}
}
