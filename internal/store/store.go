// Package store keeps the local data of the client in sqlite: starred
// items, the lending history and cached search fields.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/pkg/migrations"
)

//go:embed schema.sql
var Schema string

// SchemaVersion is bumped whenever schema.sql changes.
const SchemaVersion = 1

const (
	report_history_update = "history.update"
	report_fields_decode  = "fields.decode"
)

type Store struct {
	db    *sql.DB
	clock chrono.TimeAPI
	tel   telemetry.API
}

// Open opens (and creates) the database at path, ":memory:" gives a
// private in memory database.
func Open(ctx context.Context, path string, clock chrono.TimeAPI, tel telemetry.API) (*Store, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)

	db, err := migrations.OpenAndMigrateDB(ctx, Schema, SchemaVersion, path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{
		db:    db,
		clock: clock,
		tel:   telemetry.NewScopedAPI("store", tel),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// today is the start of the current day, history dates have day precision.
func (s *Store) today() time.Time {
	return chrono.Today(s.clock.Now())
}

func unixDay(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64, loc *time.Location) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).In(loc)
}
