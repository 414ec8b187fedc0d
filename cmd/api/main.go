package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo"
	"storefront/internal/service"
	"storefront/internal/worker"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		slog.Error("database_connect_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("migration_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shippingCost, err := decimal.NewFromString(cfg.ShippingCost)
	if err != nil {
		slog.Error("invalid_shipping_cost", slog.String("value", cfg.ShippingCost))
		os.Exit(1)
	}

	walletRepo := repo.NewWalletRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	stockRepo := repo.NewStockRepo(db)
	catalogRepo := repo.NewCatalogRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	refundRepo := repo.NewRefundRepo(db)
	refillRepo := repo.NewRefillRepo(db)

	var provider payment.Provider
	switch cfg.PaymentProvider {
	case "stripe":
		provider = payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	default:
		provider = payment.NewMockProvider(cfg.StripeWebhookSecret)
	}
	slog.Info("payment_provider_selected", slog.String("provider", provider.Name()))

	var email notify.EmailSender
	switch cfg.EmailSender {
	case "smtp":
		email = &notify.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}
	default:
		email = notify.ConsoleSender{}
	}

	var publisher notify.EventPublisher
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.OrderExchange)
		if err != nil {
			slog.Error("amqp_connect_failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	notifier := notify.NewNotifier(email, publisher, cfg.AdminEmail, nil)

	walletSvc := service.NewWalletService(db, walletRepo)
	orderSvc := service.NewOrderService(db, orderRepo, stockRepo, catalogRepo, walletSvc, notifier, shippingCost)
	paymentSvc := service.NewPaymentService(db, provider, paymentRepo, orderRepo, orderSvc, notifier, cfg.Currency)
	refundSvc := service.NewRefundService(db, refundRepo, orderRepo, walletSvc, notifier)
	refillSvc := service.NewRefillService(refillRepo, catalogRepo, orderSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := worker.NewReconciliationWorker(paymentRepo, provider, paymentSvc, cfg.ReconcileInterval, cfg.ReconcileAfter)
	go reconciler.Run(ctx)

	router := newRouter(routerDeps{
		db:       db,
		wallets:  walletSvc,
		orders:   orderSvc,
		payments: paymentSvc,
		refunds:  refundSvc,
		refills:  refillSvc,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		slog.Info("http_server_started", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http_server_failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown_failed", slog.String("error", err.Error()))
	}
}
