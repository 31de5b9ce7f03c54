package database

import (
	"embed"
	"errors"
	"fmt"

	"ecommerce_back_end/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ConnectPostgres ouvre la connexion puis applique les migrations embarquées.
func ConnectPostgres(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("connexion PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("✅ Connecté à PostgreSQL")

	if err := applyMigrations(db, cfg.DBName); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applyMigrations(db *sqlx.DB, dbName string) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("driver de migration: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("source de migration: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("initialisation des migrations: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("Aucune nouvelle migration")
		return nil
	}
	if err != nil {
		return fmt.Errorf("application des migrations: %w", err)
	}
	log.Info().Msg("✅ Migrations appliquées")
	return nil
}
