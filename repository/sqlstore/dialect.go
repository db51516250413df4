package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// dialect captures the statements that differ between MySQL and SQLite
type dialect struct {
	name        string
	goose       goose.Dialect
	upsertOwner string
	forUpdate   string

	// lockOwner serializes units of work for one owner inside tx
	lockOwner func(ctx context.Context, tx *sqlx.Tx, ownerID string) error
}

var dialects = map[string]dialect{
	"sqlite": {
		name:  "sqlite",
		goose: goose.DialectSQLite3,
		upsertOwner: `INSERT INTO owners (id, email, display_name, preferences) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET email = excluded.email, display_name = excluded.display_name,
			preferences = excluded.preferences`,
		// the pool holds a single connection, so an open transaction already excludes every other
		lockOwner: func(context.Context, *sqlx.Tx, string) error { return nil },
	},
	"mysql": {
		name:  "mysql",
		goose: goose.DialectMySQL,
		upsertOwner: `INSERT INTO owners (id, email, display_name, preferences) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE email = VALUES(email), display_name = VALUES(display_name),
			preferences = VALUES(preferences)`,
		forUpdate: " FOR UPDATE",
		lockOwner: func(ctx context.Context, tx *sqlx.Tx, ownerID string) error {
			if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO owners (id) VALUES (?)`, ownerID); err != nil {
				return err
			}
			var id string
			return tx.GetContext(ctx, &id, `SELECT id FROM owners WHERE id = ? FOR UPDATE`, ownerID)
		},
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
	return d, nil
}
