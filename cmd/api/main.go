package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/namthanhstores/storefront-backend/api"
	"github.com/namthanhstores/storefront-backend/api/controllers"
	"github.com/namthanhstores/storefront-backend/api/routes"
	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/checkout"
	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/internal/identity"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/internal/payment"
	"github.com/namthanhstores/storefront-backend/internal/products"
	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/db"
	"github.com/namthanhstores/storefront-backend/pkg/instance"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/metrics"
	"github.com/namthanhstores/storefront-backend/pkg/migrate"
	"github.com/namthanhstores/storefront-backend/pkg/pubsub"
	"github.com/namthanhstores/storefront-backend/pkg/redis"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := api.Addr(cfg, os.Getenv("PORT"))
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"backend":  cfg.Store.NormalizedBackend(),
	})

	if err := run(ctx, cfg, logg, addr); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, addr string) (err error) {
	readyChecks := map[string]controllers.Pinger{}

	var dbClient *db.Client
	switch cfg.Store.NormalizedBackend() {
	case config.BackendPostgres, config.BackendSQLite:
		dbClient, err = db.New(ctx, cfg.Store.NormalizedBackend(), cfg.DB, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, dbClient.Close()) }()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		readyChecks["database"] = dbClient
	}

	store, err := docstore.Open(ctx, cfg, dbClient, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		readyChecks["redis"] = redisClient
	}

	var publisher orders.EventPublisher
	if cfg.PubSub.OrdersTopic != "" {
		var psClient *pubsub.Client
		psClient, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, psClient.Close()) }()
		publisher, err = orders.NewPubSubPublisher(psClient, psClient.OrdersTopic())
		if err != nil {
			return err
		}
		readyChecks["pubsub"] = psClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefront(registry)

	provider, revoker, err := newIdentity(ctx, cfg, redisClient)
	if err != nil {
		return err
	}

	sessions, err := cart.NewSessions(cart.SessionsConfig{
		Store:   store,
		Logger:  logg,
		Metrics: storefrontMetrics,
		Sync:    cart.SyncOptions{WriteTimeout: cfg.Sync.WriteTimeout},
	})
	if err != nil {
		return err
	}
	watchers, err := payment.NewWatchers(store, logg)
	if err != nil {
		return err
	}
	sessions.OnClose(watchers.StopUser)

	orderService, err := orders.NewService(orders.ServiceParams{
		Store:     store,
		Logger:    logg,
		Metrics:   storefrontMetrics,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}
	productService, err := products.NewService(products.ServiceParams{Store: store, Logger: logg})
	if err != nil {
		return err
	}
	initiator, err := payment.NewHTTPInitiator(cfg.Payment, nil, logg)
	if err != nil {
		return err
	}
	coordinator, err := checkout.NewCoordinator(checkout.Params{
		Carts:           sessions,
		Initiator:       initiator,
		Watchers:        watchers,
		CashShippingFee: types.Money(cfg.Payment.CashShippingFee),
		Logger:          logg,
		Metrics:         storefrontMetrics,
	})
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Identity:    provider,
		Revoker:     revoker,
		Carts:       sessions,
		Sessions:    sessions,
		Products:    productService,
		Checkout:    coordinator,
		Watchers:    watchers,
		Orders:      orderService,
		Gatherer:    registry,
		ReadyChecks: readyChecks,
	}
	if redisClient != nil {
		deps.Idempotency = redisClient
	}

	logg.Info(ctx, "starting api server")
	serveErr := api.Serve(ctx, api.NewServer(addr, routes.NewRouter(deps)), logg)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), api.ShutdownGrace)
	defer cancel()
	closeErr := sessions.CloseAll(flushCtx)
	watchers.StopAll()
	return multierr.Combine(serveErr, closeErr)
}

func newIdentity(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (identity.Provider, identity.Revoker, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Auth.Provider), config.AuthProviderFirebase) {
		p, err := identity.NewFirebaseProvider(ctx, cfg.GCP)
		return p, nil, err
	}
	var tokenRevoker redis.TokenRevoker
	if redisClient != nil {
		tokenRevoker = redisClient
	}
	p, err := identity.NewJWTProvider(cfg.JWT, tokenRevoker)
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}
