package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campuskit/fees-engine/internal/config"
	"github.com/campuskit/fees-engine/internal/gateway"
	"github.com/campuskit/fees-engine/internal/repository"
	"github.com/campuskit/fees-engine/internal/service"
)

const jobTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	obligationRepo := repository.NewObligationRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	gw := gateway.NewPhonePeAdapter(cfg.Gateway, logger)

	paymentService := service.NewPaymentService(obligationRepo, receiptRepo, counterRepo, gw, nil, logger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("Invalid scheduler timezone", zap.Error(err))
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	setupCronJobs(c, cfg, paymentService, logger)

	c.Start()
	logger.Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, payments *service.PaymentService, logger *zap.Logger) {
	// Daily sweep marking live unpaid obligations past their due date
	_, err := c.AddFunc(cfg.Scheduler.OverdueSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := payments.MarkOverdue(ctx)
		if err != nil {
			logger.Error("overdue sweep failed", zap.Error(err))
			return
		}
		logger.Info("overdue sweep finished", zap.Int64("marked", n))
	})
	if err != nil {
		logger.Fatal("failed to schedule overdue sweep", zap.Error(err))
	}

	// Periodic poll resolving gateway attempts stuck in flight
	_, err = c.AddFunc(cfg.Scheduler.PollSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := payments.ResolveStalePayments(ctx, cfg.Scheduler.StalePaymentAge)
		if err != nil {
			logger.Error("stale payment poll failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("stale payments resolved", zap.Int("resolved", n))
		}
	})
	if err != nil {
		logger.Fatal("failed to schedule stale payment poll", zap.Error(err))
	}
}

func initLogger(cfg *config.Config) *zap.Logger {
	if cfg.IsDevelopment() {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}
