package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/models"
)

const userColumns = `id, name, email, role, user_type, subjects, rating, college_id, college_name, profile_pic`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.UserType, &u.Subjects, &u.Rating,
		&u.CollegeID, &u.CollegeName, &u.ProfilePic)
	if u.Subjects == nil {
		u.Subjects = []string{}
	}
	return u, err
}

// CreateUser вставляет профиль; email хранится в нижнем регистре.
func (q *Queries) CreateUser(ctx context.Context, u models.User) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	subjects := u.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, name, email, role, user_type, subjects, rating, college_id, college_name, profile_pic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Name, strings.ToLower(u.Email), u.Role, string(u.UserType), subjects, u.Rating,
		u.CollegeID, u.CollegeName, u.ProfilePic)
	return mapErr(err)
}

func (q *Queries) SetPasswordHash(ctx context.Context, userID, hash string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	_, err := q.db.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, userID, hash)
	return mapErr(err)
}

// PasswordHash: пустая строка, если у пользователя нет локального пароля.
func (q *Queries) PasswordHash(ctx context.Context, userID string) (string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var hash string
	err := q.db.QueryRow(ctx, `SELECT password_hash FROM credentials WHERE user_id = $1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", id, mapErr(err))
	}
	return u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", mapErr(err))
	}
	return u, nil
}

func (q *Queries) SetProfilePic(ctx context.Context, id, url string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	tag, err := q.db.Exec(ctx, `UPDATE users SET profile_pic = $2 WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

// CollegePeers: все пользователи того же колледжа (без учёта регистра), кроме excludeID.
func (q *Queries) CollegePeers(ctx context.Context, collegeName, excludeID string) ([]models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(college_name) = lower($1) AND id <> $2
		ORDER BY email
	`, collegeName, excludeID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()
	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// RegisterUser создаёт профиль и, если есть, хэш пароля в одной транзакции.
func (s *Store) RegisterUser(ctx context.Context, u models.User, passwordHash string) error {
	return s.WithTx(ctx, func(q *Queries) error {
		if err := q.CreateUser(ctx, u); err != nil {
			return err
		}
		if passwordHash == "" {
			return nil
		}
		return q.SetPasswordHash(ctx, u.ID, passwordHash)
	})
}
