package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campuskit/fees-engine/internal/config"
	"github.com/campuskit/fees-engine/internal/gateway"
	"github.com/campuskit/fees-engine/internal/handler"
	"github.com/campuskit/fees-engine/internal/repository"
	"github.com/campuskit/fees-engine/internal/service"
	"github.com/campuskit/fees-engine/pkg/response"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Repositories
	templateRepo := repository.NewTemplateRepository(db)
	obligationRepo := repository.NewObligationRepository(db)
	customFeeRepo := repository.NewCustomFeeRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// Gateway adapter
	gw := gateway.NewPhonePeAdapter(cfg.Gateway, logger)

	// Services
	generationService := service.NewGenerationService(templateRepo, obligationRepo, customFeeRepo, directoryRepo, redisClient, logger)
	paymentService := service.NewPaymentService(obligationRepo, receiptRepo, counterRepo, gw, redisClient, logger)

	// Handlers
	feesHandler := handler.NewFeesHandler(generationService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	router := setupRoutes(feesHandler, paymentHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
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

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(feesHandler *handler.FeesHandler, paymentHandler *handler.PaymentHandler, healthHandler *handler.HealthHandler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware)
	router.Use(response.LoggingMiddleware(logger))

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/fees/generate", feesHandler.Generate).Methods("POST")
	api.HandleFunc("/fees/generate-class", feesHandler.GenerateClass).Methods("POST")
	api.HandleFunc("/fees/assign", feesHandler.Assign).Methods("POST")
	api.HandleFunc("/fees/generation-groups", feesHandler.GenerationGroups).Methods("GET")
	api.HandleFunc("/fees/due-date", feesHandler.UpdateDueDate).Methods("PATCH")
	api.HandleFunc("/fees/un-generate", feesHandler.UnGenerate).Methods("PUT")
	api.HandleFunc("/fees/months", feesHandler.Months).Methods("GET")

	api.HandleFunc("/payments/pay", paymentHandler.Pay).Methods("POST")
	api.HandleFunc("/payments/callback", paymentHandler.Callback).Methods("POST")
	api.HandleFunc("/payments/status/{merchantTransactionId}", paymentHandler.Status).Methods("GET")

	return router
}
