package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillkit/pkg/db"
	"github.com/pkg/errors"
)

func Migration20261016090000CreateInstalls() db.Migration {
	return db.Migration{
		Version:     20261016090000,
		Description: "Create installs table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS installs (
					id TEXT PRIMARY KEY,
					action TEXT NOT NULL,
					name TEXT NOT NULL,
					origin TEXT NOT NULL DEFAULT '',
					ref TEXT NOT NULL DEFAULT '',
					mode TEXT NOT NULL DEFAULT '',
					destination TEXT NOT NULL,
					digest TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create installs table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS installs")
			return err
		},
	}
}
