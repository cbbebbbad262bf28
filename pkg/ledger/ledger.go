// Package ledger keeps the history of skill installs and uninstalls in the
// state database.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillkit/pkg/db"
	"github.com/jingkaihe/skillkit/pkg/db/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// timeFormat is fixed width so that created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Action is what happened to a skill.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
)

// Entry is one recorded install or uninstall.
type Entry struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin,omitempty"`
	Ref         string    `json:"ref,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Destination string    `json:"destination"`
	Digest      string    `json:"digest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type dbEntry struct {
	ID          string `db:"id"`
	Action      string `db:"action"`
	Name        string `db:"name"`
	Origin      string `db:"origin"`
	Ref         string `db:"ref"`
	Mode        string `db:"mode"`
	Destination string `db:"destination"`
	Digest      string `db:"digest"`
	CreatedAt   string `db:"created_at"`
}

func (e dbEntry) toEntry() (Entry, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid created_at for entry %s", e.ID)
	}
	return Entry{
		ID:          e.ID,
		Action:      Action(e.Action),
		Name:        e.Name,
		Origin:      e.Origin,
		Ref:         e.Ref,
		Mode:        e.Mode,
		Destination: e.Destination,
		Digest:      e.Digest,
		CreatedAt:   createdAt,
	}, nil
}

// Filter narrows List results.
type Filter struct {
	Name   string
	Action Action
	// Destination matches entries recorded at or below this path.
	Destination string
	Limit       int
}

// Ledger records install history.
type Ledger struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens the ledger at dbPath, applying pending migrations.
func Open(ctx context.Context, dbPath string) (*Ledger, error) {
	sqlDB, err := db.OpenAndMigrate(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open install ledger")
	}
	return &Ledger{db: sqlDB, now: time.Now}, nil
}

// OpenDefault opens the ledger in the skillkit base directory.
func OpenDefault(ctx context.Context) (*Ledger, error) {
	dbPath, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return Open(ctx, dbPath)
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores e, assigning an ID and timestamp when they are unset.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Name == "" || e.Destination == "" {
		return e, errors.New("ledger entry requires a name and destination")
	}
	switch e.Action {
	case ActionInstall, ActionUninstall:
	default:
		return e, errors.Errorf("invalid ledger action %q", e.Action)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO installs (id, action, name, origin, ref, mode, destination, digest, created_at)
		VALUES (:id, :action, :name, :origin, :ref, :mode, :destination, :digest, :created_at)
	`, dbEntry{
		ID:          e.ID,
		Action:      string(e.Action),
		Name:        e.Name,
		Origin:      e.Origin,
		Ref:         e.Ref,
		Mode:        e.Mode,
		Destination: e.Destination,
		Digest:      e.Digest,
		CreatedAt:   e.CreatedAt.Format(timeFormat),
	})
	if err != nil {
		return e, errors.Wrap(err, "failed to record install history")
	}
	return e, nil
}

// List returns entries newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		conditions []string
		args       []any
	)
	if f.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, f.Name)
	}
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.Destination != "" {
		dir := strings.TrimRight(f.Destination, "/")
		conditions = append(conditions, "(destination = ? OR substr(destination, 1, ?) = ?)")
		args = append(args, dir, len(dir)+1, dir+"/")
	}

	query := "SELECT id, action, name, origin, ref, mode, destination, digest, created_at FROM installs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	// rowid breaks ties between entries recorded in the same instant
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []dbEntry
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query install history")
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
