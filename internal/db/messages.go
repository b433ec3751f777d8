package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/models"
)

func (q *Queries) CreateMessage(ctx context.Context, m models.Message) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := q.db.Exec(ctx, `
		INSERT INTO messages (id, match_id, sender_id, text, ts, file_url, file_name, file_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.MatchID, m.SenderID, m.Text, m.Timestamp, m.FileURL, m.FileName, m.FileType)
	return mapErr(err)
}

// Messages: история переписки по возрастанию времени.
func (q *Queries) Messages(ctx context.Context, matchID string) ([]models.Message, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT id, match_id, sender_id, text, ts, file_url, file_name, file_type
		FROM messages WHERE match_id = $1
		ORDER BY ts, id
	`, matchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Text, &m.Timestamp, &m.FileURL, &m.FileName, &m.FileType)
		return m, err
	})
}

func (q *Queries) ListMessages(ctx context.Context) ([]models.Message, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT id, match_id, sender_id, text, ts, file_url, file_name, file_type
		FROM messages ORDER BY match_id, ts, id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Text, &m.Timestamp, &m.FileURL, &m.FileName, &m.FileType)
		return m, err
	})
}
