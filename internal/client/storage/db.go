// Package storage opens the local state database and bundles the
// repositories built on top of it. Everything stored here is non-sensitive;
// credentials live in the credential store.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/migrations"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/checks"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/snapshots"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/usage"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Repositories groups the local state repositories over one handle.
type Repositories struct {
	Metadata  metadata.Repository
	Checks    checks.Repository
	Usage     usage.Repository
	Snapshots snapshots.Repository
}

// NewRepositories builds every repository over db, which may be a *sql.DB or
// a *sql.Tx.
func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Metadata:  metadata.NewSQLiteRepository(db),
		Checks:    checks.NewSQLiteRepository(db),
		Usage:     usage.NewSQLiteRepository(db),
		Snapshots: snapshots.NewSQLiteRepository(db),
	}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the SQLite file at dsn and
// migrates it. SQLite allows a single writer, so the pool is capped to one
// connection.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
