package main

import (
	"context"
	"errors"
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
	"github.com/rs/zerolog"

	"github.com/omniflow/installment-engine/internal/cache"
	"github.com/omniflow/installment-engine/internal/config"
	"github.com/omniflow/installment-engine/internal/database"
	"github.com/omniflow/installment-engine/internal/handler"
	"github.com/omniflow/installment-engine/internal/repository"
	"github.com/omniflow/installment-engine/internal/service"
	"github.com/omniflow/installment-engine/pkg/response"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Repositories
	planRepo := repository.NewPlanRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	// Domain service and read-side syncer
	installmentService := service.NewInstallmentService(planRepo, orderRepo, paymentRepo, walletRepo, logger, cfg)
	syncer := cache.NewSyncer(
		cache.NewRedisStore(redisClient),
		orderRepo,
		walletRepo,
		cache.NewLogNotifier(logger),
		logger,
		cache.SyncerOptions{
			MinInterval: cfg.Sync.RefreshInterval,
			SnapshotTTL: cfg.Sync.SnapshotTTL,
			ReminderTTL: cfg.Sync.ReminderTTL,
			DueSoonDays: cfg.Business.DueSoonDays,
		},
	)

	installmentHandler := handler.NewInstallmentHandler(installmentService, syncer)
	healthHandler := handler.NewHealthHandler(db, redisClient, 5*time.Second)

	router := setupRoutes(installmentHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Logging.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
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

func setupRoutes(installmentHandler *handler.InstallmentHandler, healthHandler *handler.HealthHandler, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.CORSMiddleware)

	// Health checks
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/products/{productId}/plan", installmentHandler.AttachPlan).Methods("POST")
	api.HandleFunc("/products/{productId}/plan", installmentHandler.GetPlan).Methods("GET")
	api.HandleFunc("/orders", installmentHandler.CreateOrder).Methods("POST")
	api.HandleFunc("/orders/{orderId}/payments", installmentHandler.ApplyPayment).Methods("POST")
	api.HandleFunc("/orders/{orderId}/payments", installmentHandler.ListPayments).Methods("GET")
	api.HandleFunc("/orders/{orderId}/reschedule", installmentHandler.Reschedule).Methods("POST")
	api.HandleFunc("/buyers/{buyerId}/orders", installmentHandler.ListOrders).Methods("GET")
	api.HandleFunc("/buyers/{buyerId}/financial-health", installmentHandler.FinancialHealth).Methods("GET")
	api.HandleFunc("/buyers/{buyerId}/wallet", installmentHandler.WalletBalance).Methods("GET")
	api.HandleFunc("/buyers/{buyerId}/refresh", installmentHandler.Refresh).Methods("POST")
	api.HandleFunc("/sellers/{sellerId}/analytics", installmentHandler.SellerAnalytics).Methods("GET")

	return router
}
