package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/api/middleware"
	internalorders "github.com/threadkart/marketplace-backend/internal/orders"
	internalreturns "github.com/threadkart/marketplace-backend/internal/returns"
	internalshipping "github.com/threadkart/marketplace-backend/internal/shipping"
	internalwithdrawals "github.com/threadkart/marketplace-backend/internal/withdrawals"
	"github.com/threadkart/marketplace-backend/pkg/config"
	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
	"github.com/threadkart/marketplace-backend/pkg/paygate"
	"github.com/threadkart/marketplace-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Checkout(ctx context.Context, input internalorders.CheckoutInput) ([]models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return []models.Order{}, nil
}

func (stubOrdersService) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return []models.Order{}, nil
}

func (stubOrdersService) UpdateStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) ApproveCancellation(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Refund(ctx context.Context, input internalorders.RefundInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) CreditOnDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	panic("unimplemented")
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreateOrder(ctx context.Context, amountCents int64, receipt string) (*paygate.GatewayOrder, error) {
	panic("unimplemented")
}

func (stubPaymentsService) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	panic("unimplemented")
}

func (stubPaymentsService) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (string, error) {
	panic("unimplemented")
}

func (stubPaymentsService) Status(ctx context.Context, gatewayPaymentID string) (*paygate.Payment, error) {
	panic("unimplemented")
}

type stubWithdrawalsService struct{}

func (stubWithdrawalsService) Request(ctx context.Context, input internalwithdrawals.RequestInput) (*models.Withdrawal, error) {
	panic("unimplemented")
}

func (stubWithdrawalsService) AvailableBalance(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	return 12500, nil
}

func (stubWithdrawalsService) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	return []models.Withdrawal{}, nil
}

func (stubWithdrawalsService) ListForAdmin(ctx context.Context, status *enums.WithdrawalStatus, params pagination.Params) ([]models.Withdrawal, error) {
	return []models.Withdrawal{}, nil
}

func (stubWithdrawalsService) Get(ctx context.Context, id uuid.UUID, actor internalwithdrawals.Actor) (*models.Withdrawal, error) {
	panic("unimplemented")
}

func (stubWithdrawalsService) Approve(ctx context.Context, id uuid.UUID, actor internalwithdrawals.Actor) (*models.Withdrawal, error) {
	panic("unimplemented")
}

func (stubWithdrawalsService) Reject(ctx context.Context, id uuid.UUID, reason string, actor internalwithdrawals.Actor) (*models.Withdrawal, error) {
	panic("unimplemented")
}

func (stubWithdrawalsService) Process(ctx context.Context, id uuid.UUID, actor internalwithdrawals.Actor) (*models.Withdrawal, error) {
	panic("unimplemented")
}

func (stubWithdrawalsService) RefreshPayoutStatus(ctx context.Context, id uuid.UUID, actor internalwithdrawals.Actor) (*models.Withdrawal, error) {
	panic("unimplemented")
}

type stubReturnsService struct{}

func (stubReturnsService) Create(ctx context.Context, input internalreturns.CreateInput) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) Get(ctx context.Context, id uuid.UUID, actor internalreturns.Actor) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return []models.ReturnRequest{}, nil
}

func (stubReturnsService) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.ReturnRequest, error) {
	return []models.ReturnRequest{}, nil
}

func (stubReturnsService) Approve(ctx context.Context, id uuid.UUID, actor internalreturns.Actor) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) Reject(ctx context.Context, id uuid.UUID, reason string, actor internalreturns.Actor) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) Cancel(ctx context.Context, id uuid.UUID, actor internalreturns.Actor) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) BookReversePickup(ctx context.Context, id uuid.UUID, actor internalreturns.Actor) (*models.ReturnRequest, error) {
	panic("unimplemented")
}

func (stubReturnsService) MarkPicked(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubReturnsService) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubReturnsService) ApplyActualFreight(ctx context.Context, tx *gorm.DB, id uuid.UUID, actualCents int64) error {
	panic("unimplemented")
}

func (stubReturnsService) ApplyRTOCharge(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	panic("unimplemented")
}

type stubShippingService struct{}

func (stubShippingService) Rates(ctx context.Context, input internalshipping.RateInput) ([]courier.RateQuote, error) {
	panic("unimplemented")
}

func (stubShippingService) BookForOrder(ctx context.Context, orderID uuid.UUID) error {
	panic("unimplemented")
}

func (stubShippingService) CreateRTO(ctx context.Context, orderID uuid.UUID) error {
	panic("unimplemented")
}

func (stubShippingService) SchedulePickup(ctx context.Context, orderID uuid.UUID) (*courier.PickupResponse, error) {
	panic("unimplemented")
}

func (stubShippingService) CancelShipment(ctx context.Context, orderID uuid.UUID) error {
	panic("unimplemented")
}

func (stubShippingService) Label(ctx context.Context, orderID uuid.UUID) (string, error) {
	panic("unimplemented")
}

func (stubShippingService) Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackResult, error) {
	panic("unimplemented")
}

func (stubShippingService) NDRAction(ctx context.Context, orderID uuid.UUID, action, comment string) error {
	panic("unimplemented")
}

type stubWebhookService struct{}

func (stubWebhookService) Handle(ctx context.Context, carrierName string, body []byte) (string, error) {
	return "applied", nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "threadkart-test",
			ExpirationMinutes: 60,
		},
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	claims := middleware.AccessTokenClaims{
		UserID: uuid.New(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, (*redis.Client)(nil), Services{
		Orders:      stubOrdersService{},
		Payments:    stubPaymentsService{},
		Withdrawals: stubWithdrawalsService{},
		Returns:     stubReturnsService{},
		Shipping:    stubShippingService{},
		Webhook:     stubWebhookService{},
	})
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for order list got %d", resp.Code)
	}
}

func TestWithdrawalBalanceRequiresSellerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals/balance", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals/balance", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleSeller))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, seller)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for seller got %d", resp.Code)
	}
}

func TestAdminWithdrawalListRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals/admin", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleSeller))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, seller)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals/admin", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestCourierWebhookIsUnauthenticated(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for webhook ack got %d", resp.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	claims := middleware.AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleBuyer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token got %d", resp.Code)
	}
}
