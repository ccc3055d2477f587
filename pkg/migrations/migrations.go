package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// sqlite allows a single writer, more open connections only produce
	// SQLITE_BUSY. an in memory database is private to its connection too.
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

func wrapOpenAndMigrate(err error) error {
	return fmt.Errorf("open and migrate db: %w", err)
}

// OpenAndMigrateDB opens the database at path and applies the schema when
// the stored user_version is older than version. The schema must be
// idempotent (CREATE ... IF NOT EXISTS).
func OpenAndMigrateDB(ctx context.Context, schema string, version int, path string) (*sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, wrapOpenAndMigrate(err)
	}

	var current int
	err = db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current)
	if err != nil {
		db.Close()
		return nil, wrapOpenAndMigrate(err)
	}
	if current >= version {
		return db, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, wrapOpenAndMigrate(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, schema)
	if err != nil {
		db.Close()
		return nil, wrapOpenAndMigrate(err)
	}
	// PRAGMA does not take bind parameters
	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	if err != nil {
		db.Close()
		return nil, wrapOpenAndMigrate(err)
	}
	err = tx.Commit()
	if err != nil {
		db.Close()
		return nil, wrapOpenAndMigrate(err)
	}
	return db, nil
}
