package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kobofin/loan-engine/internal/config"
	"github.com/kobofin/loan-engine/internal/repository"
	"github.com/kobofin/loan-engine/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store := repository.NewPostgresStore(db)
	classificationService := service.NewClassificationService(store, redisClient, cfg, logger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatalf("Invalid scheduler timezone: %v", err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	_, err = c.AddFunc(cfg.Scheduler.CronSpec, func() {
		runDailyClassification(store, classificationService, logger)
	})
	if err != nil {
		logger.Fatalf("Failed to schedule classification job: %v", err)
	}

	c.Start()
	logger.WithField("spec", cfg.Scheduler.CronSpec).Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

// runDailyClassification walks every organization with active loans, marks
// overdue installments and writes classification records for today. A
// failing loan is reported in its batch summary and never stops the rest.
func runDailyClassification(store repository.Store, classifications *service.ClassificationService, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	asOf := time.Now().UTC()

	orgs, err := store.Loans().ListOrgs(ctx)
	if err != nil {
		logger.WithError(err).Error("listing organizations for classification batch")
		return
	}

	for _, orgID := range orgs {
		summary, _, err := classifications.ClassifyPortfolio(ctx, orgID, asOf)
		if err != nil {
			logger.WithError(err).WithField("org_id", orgID).Error("portfolio classification aborted")
			continue
		}
		if summary.Failed > 0 {
			logger.WithFields(logrus.Fields{
				"org_id":   orgID,
				"failed":   summary.Failed,
				"failures": summary.Failures,
			}).Warn("portfolio classification had per-loan failures")
		}
	}
}
