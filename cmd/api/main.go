package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repository/callback"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	adminsvc "storefront/internal/service/admin"
	productsvc "storefront/internal/service/product"
	"storefront/internal/service/settlement"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	var gw gateway.IntentCreator
	switch cfg.GatewayMode {
	case config.GatewayFake:
		logger.Warn("using in-process fake gateway")
		gw = gateway.NewFake(cfg.GatewayKeyID, cfg.GatewayKeySecret)
	default:
		client, err := gateway.New(gateway.Config{
			BaseURL:   cfg.GatewayBaseURL,
			KeyID:     cfg.GatewayKeyID,
			KeySecret: cfg.GatewayKeySecret,
			Timeout:   cfg.GatewayTimeout,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal("init gateway", zap.Error(err))
		}
		gw = client
	}

	ledger := callback.NewMemory(cfg.CallbackLedgerTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		ledger = callback.NewRedis(rdb, cfg.CallbackLedgerTTL)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal("connect to rabbitmq", zap.Error(err))
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	productService := productsvc.New(productrepo.NewPostgres(dbpool, logger))
	orderRepo := orderrepo.NewPostgres(dbpool)

	opts := settlement.Options{
		Secret:                 cfg.GatewayKeySecret,
		Currency:               cfg.Currency,
		FailOnInvalidSignature: cfg.FailOnInvalidSignature,
		Ledger:                 ledger,
		Events:                 publisher,
		Metrics:                metrics.NewSettlement(prometheus.DefaultRegisterer),
		Logger:                 logger,
	}
	if cfg.PricePolicy == config.PriceCatalog {
		opts.Prices = productService
	}
	settlementService, err := settlement.New(orderRepo, gw, opts)
	if err != nil {
		logger.Fatal("init settlement", zap.Error(err))
	}

	adminService := adminsvc.New(adminsvc.Credentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	}, orderRepo, tokenrepo.NewPostgres(dbpool), logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Settlement:  settlementService,
		Admin:       adminService,
		Catalog:     productService,
		KeyID:       cfg.GatewayKeyID,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Gatherer:    prometheus.DefaultGatherer,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("gateway_mode", cfg.GatewayMode),
			zap.String("price_policy", cfg.PricePolicy),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
