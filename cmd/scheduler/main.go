package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/omniflow/installment-engine/internal/cache"
	"github.com/omniflow/installment-engine/internal/config"
	"github.com/omniflow/installment-engine/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "scheduler").Logger()

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	walletRepo := repository.NewWalletRepository(db)

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

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Scheduler.Timezone).Msg("invalid scheduler timezone")
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	if err := setupCronJobs(c, cfg, syncer, paymentRepo, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule jobs")
	}

	c.Start()
	logger.Info().Msg("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info().Msg("scheduler stopped")
}

func setupCronJobs(
	c *cron.Cron,
	cfg *config.Config,
	syncer *cache.Syncer,
	paymentRepo repository.PaymentRepository,
	logger zerolog.Logger,
) error {
	// Refresh sweep on the cache cadence. Per-buyer minimum-interval
	// guards make overlapping runs harmless.
	refreshSpec := fmt.Sprintf("@every %s", cfg.Sync.RefreshInterval)
	if _, err := c.AddFunc(refreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
		defer cancel()

		if err := syncer.RefreshAll(ctx); err != nil {
			logger.Error().Err(err).Msg("refresh sweep failed")
		}
	}); err != nil {
		return err
	}

	// Daily sweep marking steps past their grace period as overdue.
	if _, err := c.AddFunc(cfg.Scheduler.OverdueSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		flipped, err := paymentRepo.SweepOverdue(ctx, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("overdue sweep failed")
			return
		}
		logger.Info().Int64("flipped", flipped).Msg("overdue sweep completed")
	}); err != nil {
		return err
	}

	// Morning reminder run. Reminder keys dedup per order per day, so the
	// refresh sweep and this job never double-notify.
	if _, err := c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := syncer.RefreshAll(ctx); err != nil {
			logger.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return err
	}

	logger.Info().Msg("cron jobs scheduled")
	return nil
}
