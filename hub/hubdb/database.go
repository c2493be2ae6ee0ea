// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package hubdb implements hub.DB against postgres and sqlite.
//
// Queries are written with ? placeholders and rebound per driver.
// Value lists without their own constraints (categories, links,
// loaders, typed fields, dependencies) are stored as json columns;
// anything carrying a uniqueness constraint or its own id (files,
// hashes, gallery) gets a real table.
package hubdb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

var (
	// Error is the default hubdb errs class.
	Error = errs.Class("hubdb")

	mon = monkit.Package()
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite3"
)

// queryer is the subset of *sql.DB and *sql.Tx the stores run on.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// stores bundles the query families over one queryer; the database and
// its transactions both embed it.
type stores struct {
	q      queryer
	driver string
}

// DB implements hub.DB.
//
// architecture: Master Database
type DB struct {
	stores
	log *zap.Logger
	db  *sql.DB
}

// Open connects to the database named by url. postgres:// and
// postgresql:// urls use lib/pq; sqlite:// and sqlite3:// urls use
// mattn/go-sqlite3, with sqlite://memory meaning an in-memory database.
func Open(log *zap.Logger, url string) (*DB, error) {
	driver, dsn, err := parseURL(url)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if driver == driverSQLite {
		// sqlite serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent transactions
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return nil, Error.Wrap(errs.Combine(err, db.Close()))
		}
	}
	return &DB{
		stores: stores{q: db, driver: driver},
		log:    log,
		db:     db,
	}, nil
}

func parseURL(url string) (driver, dsn string, _ error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return driverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite3://"):
		return driverSQLite, sqliteDSN(strings.TrimPrefix(url, "sqlite3://")), nil
	case strings.HasPrefix(url, "sqlite://"):
		return driverSQLite, sqliteDSN(strings.TrimPrefix(url, "sqlite://")), nil
	default:
		return "", "", Error.New("unsupported database url %q", url)
	}
}

func sqliteDSN(path string) string {
	if path == "memory" || path == ":memory:" {
		return "file::memory:?mode=memory&cache=shared"
	}
	return path
}

// Rebind converts ? placeholders to the driver's positional form.
func (s stores) Rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var out strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// Users is a getter for Users repository.
func (s stores) Users() hub.Users { return &users{s} }

// Teams is a getter for Teams repository.
func (s stores) Teams() hub.Teams { return &teams{s} }

// TeamMembers is a getter for TeamMembers repository.
func (s stores) TeamMembers() hub.TeamMembers { return &teamMembers{s} }

// Projects is a getter for Projects repository.
func (s stores) Projects() hub.Projects { return &projects{s} }

// Versions is a getter for Versions repository.
func (s stores) Versions() hub.Versions { return &versions{s} }

// Organizations is a getter for Organizations repository.
func (s stores) Organizations() hub.Organizations { return &organizations{s} }

// Vocabulary is a getter for the vocabulary repository.
func (s stores) Vocabulary() hub.Vocabulary { return &vocabulary{s} }

// Credentials is a getter for the credentials repository.
func (s stores) Credentials() hub.Credentials { return &credentials{s} }

// IDs is a getter for the id allocator.
func (s stores) IDs() ident.Allocator { return &allocator{s} }

// tx implements hub.Tx over *sql.Tx.
type tx struct {
	stores
}

// WithTx runs fn inside a single transaction.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx hub.Tx) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, ignoreDone(sqlTx.Rollback()))
		}
	}()

	if err := fn(ctx, &tx{stores{q: sqlTx, driver: db.driver}}); err != nil {
		return err
	}
	return Error.Wrap(sqlTx.Commit())
}

func ignoreDone(err error) error {
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// Close releases the underlying connections.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}
