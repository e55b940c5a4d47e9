//go:build testutil
// +build testutil

package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mrdawstar/LinguaLab-sub000/storage/database"
)

type DBHandle struct {
	DB     *sqlx.DB
	cancel func()
	stop   func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

// Start runs a disposable postgres container and applies the migrations to it.
func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:17-alpine"),
		postgres.WithDatabase("lingualab"),
		postgres.WithUsername("lingualab"),
		postgres.WithPassword("lingualab"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	fail := func(err error) (*DBHandle, error) {
		_ = pg.Terminate(ctx)
		cancel()
		return nil, err
	}

	uri, err := pg.ConnectionString(ctx, "sslmode=disable", "timezone=utc")
	if err != nil {
		return fail(err)
	}
	db, err := database.OpenDSN(ctx, uri, 10)
	if err != nil {
		return fail(err)
	}
	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return fail(err)
	}

	return &DBHandle{
		DB:     db,
		cancel: cancel,
		stop:   pg.Terminate,
	}, nil
}

// StartT starts a database for the test and closes it on cleanup.
func StartT(t *testing.T) *DBHandle {
	t.Helper()
	h, err := Start(context.Background())
	if err != nil {
		t.Fatalf("testdb.Start(): %v", err)
	}
	t.Cleanup(h.Close)
	return h
}
