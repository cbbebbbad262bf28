// Package migrations holds the state database schema, versioned by
// timestamp (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillkit/pkg/db"
)

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261016090000CreateInstalls(),
		Migration20261016090001AddInstallsIndexes(),
		Migration20261016090002AddInstallsDestinationIndex(),
	}
}
