package matcher

import (
	"context"

	"github.com/edubridge/edubridge-backend/internal/db"
)

// PostgresStore adapts *db.Store to Store.
type PostgresStore struct {
	*db.Store
}

func NewPostgresStore(s *db.Store) PostgresStore { return PostgresStore{Store: s} }

func (p PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return p.Store.WithTx(ctx, func(q *db.Queries) error { return fn(q) })
}
