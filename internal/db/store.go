package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/ctxutil"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries { return &Queries{db: db} }

func (q *Queries) WithTx(tx pgx.Tx) *Queries { return &Queries{db: tx} }

// Store: пул плюс запросы; методы Queries доступны напрямую.
type Store struct {
	Pool *pgxpool.Pool
	*Queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool, Queries: New(pool)}
}

// WithTx выполняет fn в одной транзакции; ошибка или паника fn откатывает всё.
func (s *Store) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	// после Commit это no-op (ErrTxClosed)
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ping: для /healthz и фоновой задачи.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	return s.Pool.Ping(ctx)
}

const uniqueViolation = "23505"

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return apperr.Wrap(apperr.ErrDuplicateEmail, err)
		case "users_pkey":
			return apperr.Wrap(apperr.ErrAccountExists, err)
		}
	}
	return err
}
