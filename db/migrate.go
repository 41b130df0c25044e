package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// migration is one embedded schema step. Files are named NNN_description.sql
// and applied in version order; 000 creates schema_migrations itself.
type migration struct {
	version string
	file    string
}

func embeddedMigrations() ([]migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read embedded migrations")
	}
	var steps []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, _ := strings.Cut(name, "_")
		steps = append(steps, migration{version: version, file: name})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// appliedVersions reads schema_migrations. A fresh history database has no
// table yet, which reads as nothing applied.
func appliedVersions(db *sql.DB) map[string]bool {
	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return applied
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if rows.Scan(&version) == nil {
			applied[version] = true
		}
	}
	return applied
}

func (m migration) apply(db *sql.DB) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.file))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.file)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin %s", m.file)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}

// Migrate brings the execution history schema up to date. log may be nil.
// Using a closed database yields an error matching IsDatabaseClosed.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = logger.AddDBSymbol(log)

	steps, err := embeddedMigrations()
	if err != nil {
		return err
	}

	applied := appliedVersions(db)
	pending := 0
	for _, step := range steps {
		if applied[step.version] {
			continue
		}
		log.Infow("Applying history schema migration", "migration", step.file)
		if err := step.apply(db); err != nil {
			if IsDatabaseClosed(err) {
				return errors.Mark(err, ErrDatabaseClosed)
			}
			return err
		}
		pending++
	}

	log.Debugw("History schema up to date",
		"migrations", len(steps),
		"applied_now", pending)
	return nil
}
