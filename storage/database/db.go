// Package database opens the Postgres pool shared by the sqlx and sqlboiler repositories,
// bootstraps the app role and database, and applies the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/cadence/academy/core"
	appfs "github.com/cadence/academy/fs"
)

const (
	migrationsDir = "migrations"
	maintenanceDB = "postgres"
)

var (
	waitAttempts = 30
	waitStep     = 100 * time.Millisecond
)

// DSN builds the connection URL for dbName. admin connects with the admin credentials when set.
func DSN(conf *core.Config, dbName string, admin bool) string {
	db := conf.Database
	user := url.UserPassword(db.User, db.Password)
	if admin && db.AdminUser != "" {
		user = url.UserPassword(db.AdminUser, db.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if db.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   db.Engine,
		User:     user,
		Host:     db.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func Open(conf *core.Config) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, DSN(conf, conf.Database.Name, false))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Wait pings db until it answers, sleeping a little longer after each failed attempt.
func Wait(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= waitAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(attempt) * waitStep):
		}
	}
	return errors.Wrap(err, "database ping timeout")
}

func exists(ctx context.Context, db *sql.DB, query, name string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, name).Scan(&found)
	return found, err
}

// Bootstrap creates the app role (with the admin credentials) and the app database (as the app role),
// skipping whatever already exists.
func Bootstrap(ctx context.Context, conf *core.Config) error {
	admin, err := sql.Open(conf.Database.Engine, DSN(conf, maintenanceDB, true))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = admin.Close() }()
	if err = Wait(ctx, admin); err != nil {
		return err
	}

	if role := conf.Database.User; role != "" {
		found, err := exists(ctx, admin, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role)
		if err != nil {
			return errors.Wrap(err, "checking app role")
		}
		if !found {
			q := "CREATE ROLE " + pq.QuoteIdentifier(role) + " LOGIN CREATEDB PASSWORD " + pq.QuoteLiteral(conf.Database.Password)
			if _, err = admin.ExecContext(ctx, q); err != nil {
				return errors.Wrap(err, "creating app role")
			}
		}
	}

	app, err := sql.Open(conf.Database.Engine, DSN(conf, maintenanceDB, false))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = app.Close() }()

	name := conf.Database.Name
	found, err := exists(ctx, app, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name)
	if err != nil {
		return errors.Wrap(err, "checking database")
	}
	if !found {
		if _, err = app.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
			return errors.Wrapf(err, "creating database %s", name)
		}
	}
	return nil
}

// Migrate runs a goose command ("up" by default; "down", "status", "redo", "version"...)
// against the embedded migrations.
func Migrate(db *sql.DB, args ...string) error {
	command := "up"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting dialect")
	}
	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
