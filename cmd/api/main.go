package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/bazario/backend/api/routes"
	"github.com/bazario/backend/internal/adminusers"
	"github.com/bazario/backend/internal/audit"
	authsvc "github.com/bazario/backend/internal/auth"
	checkoutsvc "github.com/bazario/backend/internal/checkout"
	"github.com/bazario/backend/internal/escrow"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/payments"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/returns"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/users"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/auth/session"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/migrate"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/redis"
	"github.com/bazario/backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, logg, dbClient, sessionManager, squareClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, sessionManager, squareClient, svcs),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	sessionManager *session.Manager,
	squareClient *square.Client,
) (routes.Services, error) {
	gormDB := dbClient.DB()

	userRepo := users.NewRepository(gormDB)
	productRepo := products.NewRepository(gormDB)
	storeRepo := stores.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	subOrderRepo := suborders.NewRepository(gormDB)
	releaseRepo := releases.NewRepository(gormDB)
	returnRepo := returns.NewRepository(gormDB)
	walletRepo := wallets.NewRepository(gormDB)
	auditRepo := audit.NewRepository(gormDB)
	webhookRepo := payments.NewWebhookEventRepository(gormDB)

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	auditSvc, err := audit.NewService(auditRepo)
	if err != nil {
		return routes.Services{}, err
	}

	walletSvc, err := wallets.NewService(walletRepo, dbClient, auditSvc)
	if err != nil {
		return routes.Services{}, err
	}

	storeSvc, err := stores.NewService(storeRepo, dbClient, walletSvc, auditSvc, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}

	productSvc, err := products.NewService(productRepo)
	if err != nil {
		return routes.Services{}, err
	}

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return routes.Services{}, err
	}

	registerService, err := authsvc.NewRegisterService(authsvc.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	calculator, err := escrow.NewCalculator(cfg.Marketplace)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutSvc, err := checkoutsvc.NewService(
		dbClient,
		orderRepo,
		productRepo,
		storeRepo,
		calculator,
		squareClient,
		outboxSvc,
		cfg.Marketplace,
	)
	if err != nil {
		return routes.Services{}, err
	}

	orderSvc, err := orders.NewService(orderRepo, subOrderRepo, productRepo, dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}

	subOrderSvc, err := suborders.NewService(subOrderRepo, dbClient, productRepo, outboxSvc, cfg.Marketplace.ReturnWindow)
	if err != nil {
		return routes.Services{}, err
	}

	releaseSvc, err := releases.NewService(releaseRepo, subOrderRepo, dbClient, walletSvc, auditSvc, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}

	returnSvc, err := returns.NewService(returns.ServiceParams{
		Repo:         returnRepo,
		SubOrderRepo: subOrderRepo,
		OrdersRepo:   orderRepo,
		ReleaseRepo:  releaseRepo,
		Tx:           dbClient,
		Wallets:      walletSvc,
		Audit:        auditSvc,
		Refunds:      squareClient,
		Outbox:       outboxSvc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Tx:           dbClient,
		WebhookRepo:  webhookRepo,
		OrdersRepo:   orderRepo,
		SubOrderRepo: subOrderRepo,
		ReleaseRepo:  releaseRepo,
		Wallets:      walletSvc,
		Outbox:       outboxSvc,
		Logger:       logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	adminUserSvc, err := adminusers.NewService(dbClient, auditSvc, cfg.Password)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:       authService,
		Register:   registerService,
		Products:   productSvc,
		Stores:     storeSvc,
		Checkout:   checkoutSvc,
		Orders:     orderSvc,
		SubOrders:  subOrderSvc,
		Wallets:    walletSvc,
		Returns:    returnSvc,
		Releases:   releaseSvc,
		Audit:      auditSvc,
		AdminUsers: adminUserSvc,
		Payments:   paymentSvc,
	}, nil
}
