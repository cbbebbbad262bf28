package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillkit/pkg/db"
	"github.com/pkg/errors"
)

func Migration20261016090001AddInstallsIndexes() db.Migration {
	return db.Migration{
		Version:     20261016090001,
		Description: "Index installs by name and time",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				"CREATE INDEX IF NOT EXISTS idx_installs_name ON installs(name)",
				"CREATE INDEX IF NOT EXISTS idx_installs_created_at ON installs(created_at DESC)",
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to execute %s", stmt)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, idx := range []string{"idx_installs_name", "idx_installs_created_at"} {
				if _, err := tx.Exec("DROP INDEX IF EXISTS " + idx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
