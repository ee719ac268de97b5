package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// migration is one schema change: a unique id plus the function that applies
// it inside a transaction.
type migration struct {
	ID    string
	Apply func(tx *sqlx.Tx) error
}

// sqlMigration builds a migration that just executes a SQL string.
func sqlMigration(id, query string) migration {
	return migration{
		ID: id,
		Apply: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(query)
			return err
		},
	}
}

// runMigrations brings the schema up to date. Applied migration ids are
// tracked in a migrations table, so reopening an existing database only runs
// what is missing; each migration commits together with its bookkeeping row.
func runMigrations(db *sqlx.DB, migrations []migration) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS migrations (id TEXT PRIMARY KEY)")
	if err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied string
		err := db.Get(&applied, "SELECT id FROM migrations WHERE id=$1", m.ID)
		switch err {
		case sql.ErrNoRows:
			log.Debug().Str("id", m.ID).Msg("applying migration")
		case nil:
			continue
		default:
			return fmt.Errorf("could not look up migration %q: %w", m.ID, err)
		}

		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("could not apply migration %q: %w", m.ID, err)
		}
	}

	return nil
}

func applyMigration(db *sqlx.DB, m migration) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}

	_, err = tx.Exec("INSERT INTO migrations (id) VALUES ($1)", m.ID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := m.Apply(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
