package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"stock_alert_backend/config"
	"stock_alert_backend/models"
	"stock_alert_backend/scheduler"
	"stock_alert_backend/services/alerts"
	"stock_alert_backend/services/indicators"
	"stock_alert_backend/services/markethours"
	"stock_alert_backend/services/news"
	"stock_alert_backend/services/notifications"
	"stock_alert_backend/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Environment == "production" {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.DebugLevel)
	}

	location, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve market timezone")
	}

	db, err := config.InitDB()
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}

	log.Info("Running database migrations")
	if err := runMigrations(); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}

	// News mentions live in MongoDB; without it news alerts are disabled but
	// everything else keeps working.
	var newsStore alerts.NewsStore
	mongoStore, err := news.Connect(context.Background(), cfg.MongoURI, log)
	if err != nil {
		log.WithError(err).Warn("MongoDB not available, news alerts disabled")
		newsStore = news.Disabled{}
	} else {
		newsStore = mongoStore
		defer mongoStore.Close(context.Background())
	}

	stores := store.New(db)
	window := markethours.NewWindow(location,
		cfg.MarketOpenHour, cfg.MarketOpenMinute,
		cfg.MarketCloseHour, cfg.MarketCloseMinute)

	evaluator := alerts.NewConditionEvaluator(stores, stores, newsStore, log)
	enqueuer := notifications.NewEnqueuer(stores, stores, log)
	orchestrator := alerts.NewOrchestrator(stores, stores, stores, enqueuer, evaluator, window, cfg.DefaultCooldownMinutes, log)
	indicatorJob := indicators.NewJob(stores, stores, stores, location, cfg.IndicatorRetentionDays, log)

	jobScheduler := scheduler.New(orchestrator, indicatorJob, window, scheduler.Options{
		AlertIntervalMinutes: cfg.AlertCheckIntervalMinutes,
		IndicatorCalcTime:    cfg.IndicatorCalcTime,
		RetentionSweepTime:   cfg.RetentionSweepTime,
	}, log)
	jobScheduler.Start()

	log.WithFields(logrus.Fields{
		"timezone":       cfg.Timezone,
		"alert_interval": cfg.AlertCheckIntervalMinutes,
		"calc_time":      cfg.IndicatorCalcTime,
	}).Info("Alert engine started")

	gracefulShutdown(jobScheduler, log)
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateStockModels(db); err != nil {
		return err
	}
	if err := models.MigrateAlertModels(db); err != nil {
		return err
	}
	return models.MigrateNotificationModels(db)
}

// gracefulShutdown stops the scheduler and closes connections on
// SIGINT/SIGTERM
func gracefulShutdown(jobScheduler *scheduler.Scheduler, log *logrus.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.WithField("signal", sig.String()).Info("Shutting down")

	jobScheduler.Stop()

	// Give in-flight job bodies a moment to finish their store calls
	time.Sleep(2 * time.Second)

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			log.Info("Database connection closed")
		}
	}
	log.Info("Shutdown completed")
}
