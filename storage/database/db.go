package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/storage/database/migrations"
)

var ErrUnsupportedBackend = errors.New("session backend is not backed by SQL")

// driver returns the database/sql driver and the goose dialect of a SQL session backend.
func driver(backend string) (name, dialect string, err error) {
	switch backend {
	case core.SessionBackendPostgres:
		return "postgres", "postgres", nil
	case core.SessionBackendSQLite:
		return "sqlite", "sqlite3", nil
	}
	return "", "", errors.Wrap(ErrUnsupportedBackend, backend)
}

// IsSQL reports whether backend keeps sessions in a SQL database.
func IsSQL(backend string) bool {
	_, _, err := driver(backend)
	return err == nil
}

// Open connects to the session database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	name, _, err := driver(conf.Session.Backend)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(conf.Session.DSN) == "" {
		return nil, errors.New("session.dsn is required")
	}

	db, err := sqlx.Open(name, conf.Session.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if name == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// RunFunc runs a goose command; swapped in tests.
var RunFunc = goose.RunContext

// Run executes a goose command ("up", "down", "status", "version", ...) against the embedded migrations.
func Run(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	// driver names match the backend names
	_, dialect, err := driver(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	if err = goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err = RunFunc(ctx, command, db.DB, ".", args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", command)
	}
	return nil
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return Run(ctx, db, "up")
}
