package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/app"
	"github.com/insighthub/server/internal/app/scheduler"
	"github.com/insighthub/server/internal/cache"
	"github.com/insighthub/server/internal/database"
	"github.com/insighthub/server/internal/delivery"
	"github.com/insighthub/server/internal/services"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insighthub", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store := selectCacheStore(cfg, db, log)
	defer func() {
		if rc, ok := store.(*cache.RedisClient); ok && rc != nil {
			_ = rc.Close()
		}
	}()

	news, err := services.NewNewsService(db)
	if err != nil {
		return fmt.Errorf("initialise news service: %w", err)
	}

	preferences, err := services.NewPreferenceService(db, store, cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("initialise preference service: %w", err)
	}

	notifier, err := services.NewNotificationService(db, nil)
	if err != nil {
		return fmt.Errorf("initialise notification service: %w", err)
	}

	trends, err := services.NewTrendService(db, news, preferences, notifier, services.TrendOptions{
		Window:           cfg.Engine.TrendWindow,
		CompanyMinItems:  cfg.Engine.CompanyMinItems,
		CategoryMinItems: cfg.Engine.CategoryMinItems,
	}, nil)
	if err != nil {
		return fmt.Errorf("initialise trend service: %w", err)
	}

	digests, err := services.NewDigestService(news, preferences)
	if err != nil {
		return fmt.Errorf("initialise digest service: %w", err)
	}

	deliverer, err := buildDeliverer(cfg, log)
	if err != nil {
		return err
	}

	jobs := scheduler.New(trends, digests, notifier, deliverer,
		scheduler.WithTrendSchedule(cfg.Scheduler.TrendSpec),
		scheduler.WithDigestSchedules(cfg.Scheduler.DailyDigest, cfg.Scheduler.WeeklyDigest),
		scheduler.WithCleanupSchedule(cfg.Scheduler.CleanupSpec),
		scheduler.WithNotificationMaxAge(cfg.Engine.NotificationMaxAge),
		scheduler.WithMarkerMaxAge(cfg.Engine.TrendMarkerMaxAge),
	)
	if cfg.Scheduler.Enabled {
		if err := jobs.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			<-jobs.Stop().Done()
		}()
		log.Info("scheduler started",
			zap.String("trend_spec", cfg.Scheduler.TrendSpec),
			zap.String("daily_digest_spec", cfg.Scheduler.DailyDigest),
			zap.String("weekly_digest_spec", cfg.Scheduler.WeeklyDigest))
	}

	metricsErr := make(chan error, 1)
	var metricsServer *http.Server
	if cfg.Monitoring.Prometheus.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Monitoring.Prometheus.Endpoint, promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Monitoring.Prometheus.Listen, Handler: mux}
		go func() {
			log.Info("metrics listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-metricsErr:
		if err != nil {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	log.Info("stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}

func selectCacheStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return client
		}
	}
	return cache.NewDatabaseStore(db, nil)
}

func buildDeliverer(cfg *app.Config, log *zap.Logger) (services.Deliverer, error) {
	var sink delivery.Sink

	switch {
	case cfg.Telegram.Enabled:
		telegram, err := delivery.NewTelegramSink(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("initialise telegram sink: %w", err)
		}
		sink = telegram
	case cfg.Email.SMTP.Enabled:
		mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		email, err := delivery.NewEmailSink(mailer, cfg.Email.SMTP.Subject)
		if err != nil {
			return nil, fmt.Errorf("initialise email sink: %w", err)
		}
		sink = email
	default:
		log.Warn("no delivery sink configured; digests will be assembled but not sent")
		return noopDeliverer{}, nil
	}

	coordinator, err := delivery.NewCoordinator(sink,
		delivery.WithMaxAttempts(cfg.Delivery.MaxAttempts),
		delivery.WithBackoff(cfg.Delivery.Backoff),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise delivery coordinator: %w", err)
	}
	return coordinator, nil
}

type noopDeliverer struct{}

func (noopDeliverer) Channel() string { return "none" }

func (noopDeliverer) Deliver(ctx context.Context, destination, text string) error {
	return nil
}
