//go:build testutil
// +build testutil

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/edubridge/edubridge-backend/internal/db"
)

// DBHandle: поднятый контейнер Postgres со схемой приложения.
type DBHandle struct {
	URL    string
	Store  *db.Store
	cancel func()
	stop   func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.Store != nil {
		h.Store.Pool.Close()
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

func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:17-alpine"),
		postgres.WithDatabase("edubridge"),
		postgres.WithUsername("edubridge"),
		postgres.WithPassword("edubridge"),
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

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail(err)
	}

	// миграции через database/sql (lib/pq), приложение: через pgxpool
	sqlDB, err := sql.Open("postgres", uri)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = sqlDB.Close() }()
	if err := waitReady(ctx, sqlDB); err != nil {
		return fail(err)
	}
	if err := db.MigrateSQL(ctx, sqlDB); err != nil {
		return fail(err)
	}

	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return fail(err)
	}

	return &DBHandle{
		URL:    uri,
		Store:  db.NewStore(pool),
		cancel: cancel,
		stop:   pg.Terminate,
	}, nil
}

func waitReady(ctx context.Context, sqlDB *sql.DB) error {
	dead := time.Now().Add(20 * time.Second)
	for time.Now().Before(dead) {
		if err := sqlDB.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("db not ready")
}
