package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/models"
)

const matchColumns = `id, post_id, learner_id, mentor_id, status, created_at`

func scanMatch(row pgx.Row) (models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.PostID, &m.LearnerID, &m.MentorID, &m.Status, &m.CreatedAt)
	return m, err
}

func (q *Queries) CreateMatch(ctx context.Context, m models.Match) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := q.db.Exec(ctx, `
		INSERT INTO matches (id, post_id, learner_id, mentor_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.PostID, m.LearnerID, m.MentorID, string(m.Status), m.CreatedAt)
	return mapErr(err)
}

func (q *Queries) GetMatch(ctx context.Context, id string) (models.Match, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	m, err := scanMatch(q.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		return models.Match{}, fmt.Errorf("get match %s: %w", id, mapErr(err))
	}
	return m, nil
}

// AdvanceMatchStatus: условный UPDATE ... WHERE status = from, возвращает новую запись.
func (q *Queries) AdvanceMatchStatus(ctx context.Context, id string, from, to models.MatchStatus) (models.Match, error) {
	if !from.CanAdvanceTo(to) {
		return models.Match{}, apperr.ErrInvalidTransition
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	m, err := scanMatch(q.db.QueryRow(ctx, `
		UPDATE matches SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING `+matchColumns, id, string(from), string(to)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Match{}, fmt.Errorf("match %s: %w", id, apperr.ErrInvalidTransition)
	}
	return m, err
}

// PendingForLearner: предложения, ожидающие ответа автора поста.
func (q *Queries) PendingForLearner(ctx context.Context, learnerID string) ([]models.Match, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE learner_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id
	`, learnerID)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

// AcceptedForUser: принятые матчи, где пользователь ученик или ментор.
func (q *Queries) AcceptedForUser(ctx context.Context, userID string) ([]models.Match, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE (learner_id = $1 OR mentor_id = $1) AND status = 'accepted'
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (q *Queries) ListMatches(ctx context.Context) ([]models.Match, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]models.Match, error) {
	defer rows.Close()
	out := []models.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
