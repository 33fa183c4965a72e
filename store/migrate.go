package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrations, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("failed to read %s migrations: %w", s.driver, err)
	}

	var driver database.Driver
	switch s.driver {
	case SQLite:
		// The sqlite driver works on the shared *sql.DB: the migrate instance must not be
		// closed, it would close the store too.
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	case Postgres:
		conn, cerr := s.db.Conn(ctx)
		if cerr != nil {
			return fmt.Errorf("failed to get a connection: %w", cerr)
		}
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err == nil {
			defer driver.Close()
		} else {
			conn.Close()
		}
	default:
		return fmt.Errorf("unsupported store driver %q", s.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	s.log.Info("schema migrated", zap.String("driver", s.driver), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
