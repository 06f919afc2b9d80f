// Package main provides the main entry point for the tender intelligence pipeline
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tenderintel/tender-intel/app/scheduler"
	"github.com/tenderintel/tender-intel/app/scraper"
	"github.com/tenderintel/tender-intel/app/services"
	businessflow "github.com/tenderintel/tender-intel/business_flow"
	"github.com/tenderintel/tender-intel/config"
	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
)

// Application holds the wired pipeline and its teardown hooks
type Application struct {
	config    *config.Config
	scheduler *scheduler.PipelineScheduler
	metrics   *http.Server
	stopFuncs []func()
}

func main() {
	log.Println("Starting tender-intel pipeline...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down gracefully...")

	cancel()
	app.scheduler.Stop()
	for _, fn := range app.stopFuncs {
		fn()
	}

	if app.metrics != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
		defer shutdownCancel()
		if err := app.metrics.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during metrics shutdown: %v", err)
		}
	}

	log.Println("Pipeline stopped")
}

func initializeApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger := utils.NewLogger("", utils.LoggerOptions{
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	app := &Application{config: cfg}

	// Repositories
	sourceRepo := repository.NewSourceRepository(db)
	healthRepo := repository.NewSourceHealthRepository(db)
	tenderRepo := repository.NewTenderRepository(db)
	keywordRepo := repository.NewKeywordRepository(db)
	matchRepo := repository.NewTenderKeywordMatchRepository(db)
	fetchRunRepo := repository.NewFetchRunRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Keyword index with optional redis-backed invalidation
	index := businessflow.NewKeywordIndex(keywordRepo, logger, cfg.Scheduler.KeywordIndexTTL)
	if cfg.Cache.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr(),
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		stop := index.StartInvalidationListener(ctx, redisClient)
		app.stopFuncs = append(app.stopFuncs, stop)
		app.stopFuncs = append(app.stopFuncs, func() { _ = redisClient.Close() })
	}

	// Delivery channels
	var email businessflow.EmailDeliverer = services.NewMockEmailDeliverer()
	if cfg.Notifications.EnableEmail {
		email = services.NewSMTPEmailDeliverer(
			cfg.Notifications.SMTPHost,
			cfg.Notifications.SMTPPort,
			cfg.Notifications.SMTPUsername,
			cfg.Notifications.SMTPPassword,
			cfg.Notifications.FromEmail,
			cfg.Notifications.FromName,
		)
	}
	var desktop businessflow.DesktopDeliverer = services.NewMockDesktopDeliverer()
	if cfg.Notifications.EnableDesktop {
		desktop = services.NewNotifySendDeliverer()
	}

	// Business flows
	healthTracker := businessflow.NewSourceHealthTracker(healthRepo, sourceRepo, cfg.Health.FailureThreshold, logger)
	detector := businessflow.NewChangeDetector()
	matcher := businessflow.NewKeywordMatcher(index, keywordRepo, matchRepo, tenderRepo, logger)
	dispatcher := businessflow.NewNotificationDispatcher(notifRepo, userRepo, tenderRepo, email, desktop, businessflow.DispatcherConfig{
		EnableEmail:       cfg.Notifications.EnableEmail,
		EnableDesktop:     cfg.Notifications.EnableDesktop,
		DeadlineAlertDays: cfg.Notifications.DeadlineAlertDays,
	}, logger)

	scraperOpts := scraper.Options{
		Timeout:     cfg.Scraping.FetchTimeout,
		UserAgent:   cfg.Scraping.UserAgent,
		MaxAttempts: cfg.Scraping.MaxAttempts,
	}
	orchestrator := businessflow.NewIngestionOrchestrator(
		sourceRepo,
		tenderRepo,
		fetchRunRepo,
		healthTracker,
		detector,
		matcher,
		dispatcher,
		func(source *models.Source) scraper.Scraper { return scraper.ForSource(source, scraperOpts) },
		cfg.Scraping.MaxConcurrentScrapes,
		logger,
	)

	app.scheduler = scheduler.NewPipelineScheduler(orchestrator, dispatcher, matcher, tenderRepo, fetchRunRepo, scheduler.JobSpecs{
		FetchAllSources: cfg.Scheduler.FetchAllSpec,
		DeadlineCheck:   cfg.Scheduler.DeadlineSpec,
		RematchSweep:    cfg.Scheduler.RematchSpec,
		ExpireTenders:   cfg.Scheduler.ExpireSpec,
		CleanupRuns:     cfg.Scheduler.CleanupSpec,
	}, logger)

	if cfg.Metrics.Enabled {
		app.metrics = startMetricsServer(cfg.Metrics, logger)
	}

	return app, nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Source{},
		&models.SourceHealth{},
		&models.Tender{},
		&models.Keyword{},
		&models.TenderKeywordMatch{},
		&models.FetchRun{},
		&models.Notification{},
		&models.User{},
	)
}

func startMetricsServer(cfg config.MetricsConfig, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("metrics: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics: server error: %v", err)
		}
	}()
	return srv
}
