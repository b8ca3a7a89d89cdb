package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// runMigrations applies every pending migration embedded under
// migrations/, the same "migrations compiled into the binary, auto-applied
// on startup" workflow the teacher's pkg/database follows — only the
// driver changes, since there is no Ent client sharing the connection here.
func runMigrations(databaseURL string) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		srcErr, dbErr := m.Close()
		return fmt.Errorf("failed to apply migrations: %w (source close: %v, db close: %v)", err, srcErr, dbErr)
	}

	if _, dbErr := m.Close(); dbErr != nil {
		return fmt.Errorf("failed to close migration database handle: %w", dbErr)
	}
	return nil
}

// pgx5DSN rewrites a postgres:// DSN to the pgx5:// scheme golang-migrate's
// pgx/v5 database driver expects.
func pgx5DSN(dsn string) string {
	return "pgx5://" + dsn[len("postgres://"):]
}
