package db

import (
	"context"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/models"
)

const postColumns = `id, type, author_id, title, description, subject, created_at, status`

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.Type, &p.AuthorID, &p.Title, &p.Description, &p.Subject, &p.CreatedAt, &p.Status)
	return p, err
}

func (q *Queries) CreatePost(ctx context.Context, p models.Post) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := q.db.Exec(ctx, `
		INSERT INTO posts (id, type, author_id, title, description, subject, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, string(p.Type), p.AuthorID, p.Title, p.Description, p.Subject, p.CreatedAt, string(p.Status))
	return mapErr(err)
}

func (q *Queries) GetPost(ctx context.Context, id string) (models.Post, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	p, err := scanPost(q.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return models.Post{}, fmt.Errorf("get post %s: %w", id, mapErr(err))
	}
	return p, nil
}

// OpenPosts: ленивый снимок открытых постов чужих авторов, новые первыми.
// Запрос выполняется при первом проходе по последовательности.
func (q *Queries) OpenPosts(ctx context.Context, excludeAuthorID string) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		ctx, cancel := ctxutil.WithDBTimeout(ctx)
		defer cancel()
		rows, err := q.db.Query(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE status = 'open' AND author_id <> $1
			ORDER BY created_at DESC, id
		`, excludeAuthorID)
		if err != nil {
			yield(models.Post{}, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPost(rows)
			if !yield(p, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Post{}, err)
		}
	}
}

func (q *Queries) PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT `+postColumns+` FROM posts WHERE author_id = $1 ORDER BY created_at DESC, id
	`, authorID)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (q *Queries) ListPosts(ctx context.Context) ([]models.Post, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// AdvancePostStatus: условный переход; если статус уже не from, ErrInvalidTransition.
func (q *Queries) AdvancePostStatus(ctx context.Context, id string, from, to models.PostStatus) error {
	if !from.CanAdvanceTo(to) {
		return apperr.ErrInvalidTransition
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	tag, err := q.db.Exec(ctx, `UPDATE posts SET status = $3 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", id, apperr.ErrInvalidTransition)
	}
	return nil
}

func collectPosts(rows pgx.Rows) ([]models.Post, error) {
	defer rows.Close()
	out := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
