package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tradeshield/escrow-backend/internal/api"
	"github.com/tradeshield/escrow-backend/internal/auth"
	"github.com/tradeshield/escrow-backend/internal/config"
	"github.com/tradeshield/escrow-backend/internal/db"
	"github.com/tradeshield/escrow-backend/internal/logger"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/payments"
	"github.com/tradeshield/escrow-backend/internal/repository/postgres"
	"github.com/tradeshield/escrow-backend/internal/services"
	"github.com/tradeshield/escrow-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	provider := payments.NewHTTPProvider(cfg.PaymentProviderURL, cfg.PaymentProviderKey, cfg.ProviderTimeout)

	notifSvc := services.NewNotificationService(repos.Notifications, wp)
	userSvc := services.NewUserService(repos.Users)
	escrowSvc := services.NewEscrowService(repos.Escrows, repos.Users, repos.BankAccounts, repos.Payouts, repos.AuditLogs, notifSvc, cfg.AutoReleaseWindow)
	disputeSvc := services.NewDisputeService(repos.Escrows, repos.Payouts, repos.BankAccounts, repos.AuditLogs, notifSvc)
	paymentSvc := services.NewPaymentService(repos.Payments, repos.Escrows, provider, escrowSvc)
	bankSvc := services.NewBankService(repos.BankAccounts, repos.Payouts)
	kycSvc := services.NewKYCService(repos.KYC, repos.AuditLogs, notifSvc)
	apikeySvc := services.NewAPIKeyService(repos.APIKeys)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:           cfg,
		TM:            tm,
		Users:         userSvc,
		Escrows:       escrowSvc,
		Disputes:      disputeSvc,
		Payments:      paymentSvc,
		Notifications: notifSvc,
		Banks:         bankSvc,
		KYC:           kycSvc,
		APIKeys:       apikeySvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return escrowSvc.RunAutoRelease(gctx, cfg.AutoReleaseInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}
