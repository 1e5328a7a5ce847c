package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/go-quotations/internal/config"
	"github.com/diewo77/go-quotations/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RequiredTables must exist after any migration path.
var RequiredTables = []string{"quotations", "quotation_items", "quotation_sequences"}

// Migrate brings the schema up to date. With sqlMigrations on postgres the
// versioned SQL files are applied through golang-migrate; every other case
// uses AutoMigrate.
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool) error {
	if sqlMigrations && (cfg.Driver == "postgres" || cfg.Driver == "") {
		if err := runSQLMigrations(cfg.URL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.AllModels() {
			if err := conn.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}

	for _, table := range RequiredTables {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// runSQLMigrations applies the embedded migrations to the database at url.
func runSQLMigrations(url string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
