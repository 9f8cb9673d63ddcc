// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"protagonist-billing/internal/config"
	"protagonist-billing/internal/domain/ports/adapter"
	payAdapters "protagonist-billing/internal/infra/adapters/payment"
	schedAdapters "protagonist-billing/internal/infra/adapters/scheduler"
	pg "protagonist-billing/internal/infra/db/postgres"
	"protagonist-billing/internal/infra/logging"
	red "protagonist-billing/internal/infra/redis"
	"protagonist-billing/internal/infra/sched"
	"protagonist-billing/internal/infra/web"
	"protagonist-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	challengeRepo := pg.NewPostgresChallengeRepo(pool)
	paymentRepo := pg.NewPostgresPaymentRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payAdapters.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL)
		logger.Info().Str("base_url", cfg.Stripe.BaseURL).Msg("payment gateway: stripe")
	} else if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop (dev)")
	} else {
		log.Fatal("stripe.secret_key is required outside dev mode")
	}

	// ---- One-shot scheduler ----
	var oneShot adapter.OneShotScheduler
	if eb := cfg.Scheduler.EventBridge; eb.Region != "" && eb.TargetArn != "" {
		oneShot = schedAdapters.NewEventBridgeScheduler(eb.Region, eb.TargetArn, eb.RoleArn)
		logger.Info().Str("region", eb.Region).Msg("scheduler: eventbridge")
	} else if cfg.Runtime.Dev {
		oneShot = schedAdapters.NewNoopScheduler()
		logger.Warn().Msg("scheduler: noop (dev)")
	} else {
		log.Fatal("scheduler.eventbridge.region and target_arn are required outside dev mode")
	}

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, logger)
	challengeUC := usecase.NewChallengeUseCase(challengeRepo, userRepo, tm, logger)
	subUC := usecase.NewSubscriptionUseCase(userRepo, paymentRepo, oneShot, logger)
	refundUC := usecase.NewRefundUseCase(userRepo, challengeRepo, paymentRepo, gateway, oneShot, tm, locker, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, 30*time.Minute)
	srv := web.NewServer(userUC, challengeUC, subUC, refundUC, auth, cfg.Server.WebhookSecret, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Missed sweeper ----
	sweeper := sched.NewMissedSweeper(cfg.Scheduler.SweepInterval, cfg.Scheduler.SweepBatch, challengeUC, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
