package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-quotations/auth"
	"github.com/diewo77/go-quotations/internal/config"
	"github.com/diewo77/go-quotations/internal/db"
	"github.com/diewo77/go-quotations/internal/events"
	"github.com/diewo77/go-quotations/internal/lock"
	"github.com/diewo77/go-quotations/internal/logging"
	"github.com/diewo77/go-quotations/internal/services"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.App.LogLevel, os.Stdout)

	dbConn, err := db.Open(cfg.Database, cfg.App.Dev, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.Database, true); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")
		return
	}
	if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	auth.TrustActorHeader(cfg.App.Dev)

	opts := services.Options{
		Prefix:     cfg.Quotation.Prefix,
		Validity:   cfg.Quotation.Validity(),
		StrictSend: cfg.Quotation.StrictSend,
		Logger:     log,
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("redis unreachable")
		}
		cancel()
		opts.NumberLocker = lock.NewRedisLocker(rdb, "quotations", time.Duration(cfg.Redis.LockTTL)*time.Second, log)
		log.WithField("address", cfg.Redis.Address).Info("redis numbering lock enabled")
	}

	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
		defer kp.Close()
		opts.Publisher = kp
		log.WithFields(logrus.Fields{"brokers": brokers, "topic": cfg.Kafka.Topic}).Info("publishing events to kafka")
	}

	svc := services.NewQuotationService(dbConn, opts)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(dbConn, svc, log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}
