package internal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jlairapp/faceFlipper/internal/migrations"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

func NewDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("No new migrations to apply")
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	log.Info().Msg("Migrations applied")
	return db, nil
}
