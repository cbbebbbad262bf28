package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillkit/pkg/db"
	"github.com/pkg/errors"
)

// history --dest filters on destination, newest first.
func Migration20261016090002AddInstallsDestinationIndex() db.Migration {
	return db.Migration{
		Version:     20261016090002,
		Description: "Index installs by destination and skill",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_installs_destination_name ON installs(destination, name)")
			return errors.Wrap(err, "failed to index installs by destination")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP INDEX IF EXISTS idx_installs_destination_name")
			return err
		},
	}
}
