package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/storechat/internal/store/migrations"
)

// ErrDirtySchema is returned when a previous migration stopped halfway.
var ErrDirtySchema = errors.New("schema is dirty, repair it by hand")

// MigrateResult reports the schema version before and after Migrate.
type MigrateResult struct {
	From uint
	To   uint
}

// Changed reports whether any migration ran.
func (r MigrateResult) Changed() bool {
	return r.From != r.To
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, nil
}

// Migrate brings the schema to the latest embedded version. The migrator
// is not closed because closing it would close db.
func (db *DB) Migrate() (MigrateResult, error) {
	m, err := db.migrator()
	if err != nil {
		return MigrateResult{}, err
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return MigrateResult{}, fmt.Errorf("schema version: %w", err)
	case dirty:
		return MigrateResult{From: from, To: from}, fmt.Errorf("version %d: %w", from, ErrDirtySchema)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrateResult{From: from}, fmt.Errorf("migration up: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return MigrateResult{From: from}, fmt.Errorf("schema version: %w", err)
	}
	return MigrateResult{From: from, To: to}, nil
}
