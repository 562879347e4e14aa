package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazario/backend/api/controllers"
	webhookcontrollers "github.com/bazario/backend/api/controllers/webhooks"
	"github.com/bazario/backend/api/middleware"
	"github.com/bazario/backend/internal/adminusers"
	"github.com/bazario/backend/internal/audit"
	authsvc "github.com/bazario/backend/internal/auth"
	checkoutsvc "github.com/bazario/backend/internal/checkout"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/payments"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/returns"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/auth/session"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/redis"
	"github.com/bazario/backend/pkg/square"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Auth       authsvc.Service
	Register   authsvc.RegisterService
	Products   products.Service
	Stores     stores.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	SubOrders  suborders.Service
	Wallets    wallets.Service
	Returns    returns.Service
	Releases   releases.Service
	Audit      audit.Service
	AdminUsers adminusers.Service
	Payments   payments.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	squareClient *square.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(svcs.Payments, squareClient, logg))
	})

	// Public catalog, no session required.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(svcs.Products, logg))
		r.Get("/{productID}", controllers.GetProduct(svcs.Products, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, redisClient, logg),
			middleware.Idempotency(redisClient, logg),
		).Post("/register", controllers.AuthRegister(svcs.Register, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/admin/login", controllers.AdminAuthLogin(svcs.Auth, logg))
	})

	// Authenticated customer surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/api/v1/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(svcs.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(svcs.Orders, logg))
		})

		r.Route("/api/v1/returns", func(r chi.Router) {
			r.Post("/", controllers.RequestReturn(svcs.Returns, logg))
			r.Get("/", controllers.ListMyReturns(svcs.Returns, logg))
		})

		r.Route("/api/v1/stores", func(r chi.Router) {
			r.Post("/", controllers.CreateStore(svcs.Stores, logg))
			r.Get("/me", controllers.GetMyStore(svcs.Stores, logg))
		})

		r.Route("/api/v1/vendor", func(r chi.Router) {
			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.CreateProduct(svcs.Products, logg))
				r.Patch("/{productID}", controllers.UpdateProduct(svcs.Products, logg))
				r.Patch("/{productID}/active", controllers.SetProductActive(svcs.Products, logg))
			})
			r.Route("/sub-orders", func(r chi.Router) {
				r.Get("/", controllers.ListStoreSubOrders(svcs.SubOrders, logg))
				r.Get("/{subOrderID}", controllers.GetStoreSubOrder(svcs.SubOrders, logg))
				r.Get("/{subOrderID}/history", controllers.SubOrderHistory(svcs.SubOrders, logg))
				r.Post("/{subOrderID}/transition", controllers.TransitionSubOrder(svcs.SubOrders, logg))
			})
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.GetStoreWallet(svcs.Wallets, logg))
				r.Get("/entries", controllers.ListWalletEntries(svcs.Wallets, logg))
			})
		})
	})

	// Back-office surface.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", controllers.AdminListStores(svcs.Stores, logg))
			r.Post("/{storeID}/approve", controllers.AdminApproveStore(svcs.Stores, logg))
			r.Post("/{storeID}/suspend", controllers.AdminSuspendStore(svcs.Stores, logg))
		})
		r.Route("/sub-orders", func(r chi.Router) {
			r.Post("/{subOrderID}/release", controllers.AdminReleaseEscrow(svcs.Releases, logg))
		})
		r.Get("/releases/eligible", controllers.AdminListEligibleReleases(svcs.Releases, logg))
		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.AdminListReturns(svcs.Returns, logg))
			r.Post("/{returnID}/decision", controllers.AdminDecideReturn(svcs.Returns, logg))
			r.Post("/{returnID}/complete", controllers.AdminCompleteReturn(svcs.Returns, logg))
		})
		r.Route("/wallets", func(r chi.Router) {
			r.Post("/{storeID}/adjust", controllers.AdminAdjustWallet(svcs.Wallets, logg))
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(svcs.AdminUsers, logg))
			r.Post("/", controllers.AdminCreateUser(svcs.AdminUsers, logg))
			r.Post("/{userID}/deactivate", controllers.AdminDeactivateUser(svcs.AdminUsers, logg))
		})
		r.Get("/audit-log", controllers.AdminListAuditLog(svcs.Audit, logg))
	})

	return r
}
