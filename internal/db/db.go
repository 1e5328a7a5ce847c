package db

import (
	"fmt"
	"regexp"
	"time"

	"github.com/diewo77/go-quotations/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectAttempts and RetryDelay control how long Open waits for the database.
var (
	ConnectAttempts = 5
	RetryDelay      = 2 * time.Second
)

// Dialector returns the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// Open connects with retries, tunes the pool and installs tracing.
func Open(cfg config.DatabaseConfig, dev bool, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	logLevel := logger.Silent
	if dev {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	for attempt := 1; attempt <= ConnectAttempts; attempt++ {
		conn, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "driver": cfg.Driver}).
			Warnf("database connection failed: %v", err)
		if attempt < ConnectAttempts {
			time.Sleep(RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", ConnectAttempts, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// One writer at a time; concurrent sqlite writers fail with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		}
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		log.Warnf("database connected but otelgorm plugin failed: %v", err)
	}

	log.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"dsn":    MaskDSN(cfg.DSN()),
	}).Info("connected to database")
	return conn, nil
}

var (
	kvPasswordRe  = regexp.MustCompile(`(password=)([^\s]+)`)
	urlPasswordRe = regexp.MustCompile(`^([a-z]+://[^:/@]+:)([^@]+)(@)`)
	dsnPasswordRe = regexp.MustCompile(`^([^:/@]+:)([^@]+)(@tcp\()`)
)

// MaskDSN hides the password of a key=value, URL or mysql DSN for logging.
func MaskDSN(dsn string) string {
	dsn = kvPasswordRe.ReplaceAllString(dsn, `${1}***`)
	dsn = urlPasswordRe.ReplaceAllString(dsn, `${1}***${3}`)
	return dsnPasswordRe.ReplaceAllString(dsn, `${1}***${3}`)
}
