package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadkart/marketplace-backend/api/controllers"
	ordercontrollers "github.com/threadkart/marketplace-backend/api/controllers/orders"
	paymentcontrollers "github.com/threadkart/marketplace-backend/api/controllers/payments"
	returncontrollers "github.com/threadkart/marketplace-backend/api/controllers/returns"
	shippingcontrollers "github.com/threadkart/marketplace-backend/api/controllers/shipping"
	webhookcontrollers "github.com/threadkart/marketplace-backend/api/controllers/webhooks"
	withdrawalcontrollers "github.com/threadkart/marketplace-backend/api/controllers/withdrawals"
	"github.com/threadkart/marketplace-backend/api/middleware"
	"github.com/threadkart/marketplace-backend/internal/orders"
	"github.com/threadkart/marketplace-backend/internal/payments"
	"github.com/threadkart/marketplace-backend/internal/returns"
	"github.com/threadkart/marketplace-backend/internal/shipping"
	courierwebhook "github.com/threadkart/marketplace-backend/internal/webhooks/courier"
	"github.com/threadkart/marketplace-backend/internal/withdrawals"
	"github.com/threadkart/marketplace-backend/pkg/config"
	"github.com/threadkart/marketplace-backend/pkg/db"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Orders      orders.Service
	Payments    payments.Service
	Withdrawals withdrawals.Service
	Returns     returns.Service
	Shipping    shipping.Service
	Webhook     courierwebhook.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Carrier pushes are unauthenticated; the handler acknowledges
	// everything except structurally invalid JSON.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/courier", webhookcontrollers.CourierWebhook(svcs.Webhook, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(svcs.Orders, logg))
			r.Post("/", ordercontrollers.Checkout(svcs.Orders, logg))
			r.Post("/with-payment", ordercontrollers.CheckoutWithPayment(svcs.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svcs.Orders, logg))
			r.Put("/{orderId}/status", ordercontrollers.UpdateStatus(svcs.Orders, logg))
			r.Put("/{orderId}/cancel", ordercontrollers.Cancel(svcs.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-order", paymentcontrollers.CreateOrder(svcs.Payments, logg))
			r.Post("/verify", paymentcontrollers.Verify(svcs.Payments, logg))
			r.Get("/status/{paymentId}", paymentcontrollers.Status(svcs.Payments, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.With(middleware.RequireRole(string(enums.ActorRoleSeller), logg)).Group(func(r chi.Router) {
				r.Post("/request", withdrawalcontrollers.Request(svcs.Withdrawals, logg))
				r.Get("/mine", withdrawalcontrollers.Mine(svcs.Withdrawals, logg))
				r.Get("/balance", withdrawalcontrollers.Balance(svcs.Withdrawals, logg))
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
				r.Get("/", withdrawalcontrollers.AdminList(svcs.Withdrawals, logg))
				r.Put("/{withdrawalId}/status", withdrawalcontrollers.AdminDecide(svcs.Withdrawals, logg))
				r.Put("/{withdrawalId}/payout-status", withdrawalcontrollers.AdminPayoutStatus(svcs.Withdrawals, logg))
			})
		})

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", returncontrollers.Create(svcs.Returns, logg))
			r.Get("/mine", returncontrollers.Mine(svcs.Returns, logg))
			r.Get("/{returnId}", returncontrollers.Detail(svcs.Returns, logg))
			r.Put("/{returnId}/cancel", returncontrollers.Cancel(svcs.Returns, logg))
			r.Route("/seller", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ActorRoleSeller), logg))
				r.Get("/", returncontrollers.SellerList(svcs.Returns, logg))
				r.Post("/reverse-pickup", returncontrollers.ReversePickup(svcs.Returns, logg))
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
				r.Put("/{returnId}/approve", returncontrollers.Approve(svcs.Returns, logg))
				r.Put("/{returnId}/reject", returncontrollers.Reject(svcs.Returns, logg))
			})
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, string(enums.ActorRoleSeller), string(enums.ActorRoleAdmin)))
			r.Post("/rates", shippingcontrollers.Rates(svcs.Shipping, logg))
			r.Post("/shipments", shippingcontrollers.CreateShipment(svcs.Shipping, logg))
			r.Post("/pickups", shippingcontrollers.SchedulePickup(svcs.Shipping, logg))
			r.Get("/label/{orderId}", shippingcontrollers.Label(svcs.Shipping, logg))
			r.Post("/cancel/{orderId}", shippingcontrollers.CancelShipment(svcs.Shipping, logg))
			r.Post("/ndr-action", shippingcontrollers.NDRAction(svcs.Shipping, logg))
			r.Post("/track", shippingcontrollers.Track(svcs.Shipping, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
			r.Post("/{orderId}/approve-cancellation", ordercontrollers.ApproveCancellation(svcs.Orders, logg))
			r.Post("/{orderId}/refund", ordercontrollers.Refund(svcs.Orders, logg))
		})
	})

	return r
}
