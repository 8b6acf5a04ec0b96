package sqlkv

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/fs"
)

const migrationsDir = "migrations"

// Open connects to the database selected by conf.Store (postgres or sqlite3) and waits until it answers.
func Open(conf *core.Config) (*sqlx.DB, error) {
	engine, dsn := conf.Store.Engine, conf.Store.DSN
	switch engine {
	case "sqlite3":
		if dsn == "" {
			dsn = ":memory:"
		}
	case "postgres":
		if dsn == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
	default:
		return nil, errors.Errorf("unsupported SQL engine %q", engine)
	}

	db, err := sqlx.Open(engine, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if engine == "sqlite3" {
		// every connection to :memory: is a new database
		db.SetMaxOpenConns(1)
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
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

func prepareGoose(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	return errors.Wrap(goose.SetDialect(db.DriverName()), "setting migrations dialect")
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	return RunMigrations(context.Background(), db, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo...) against db.
func RunMigrations(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %s", command)
	}
	return nil
}
