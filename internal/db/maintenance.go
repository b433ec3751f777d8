package db

import (
	"context"
	"fmt"
)

type Counts struct {
	Users    int
	Posts    int
	Matches  int
	Messages int
}

// Counts: сводка для edubridgectl check и метрик.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.Pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM users),
		       (SELECT count(*) FROM posts),
		       (SELECT count(*) FROM matches),
		       (SELECT count(*) FROM messages)
	`).Scan(&c.Users, &c.Posts, &c.Matches, &c.Messages)
	return c, err
}

// StatusGauges: число открытых постов и ожидающих матчей.
func (s *Store) StatusGauges(ctx context.Context) (openPosts, pendingMatches int, err error) {
	err = s.Pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM posts WHERE status = 'open'),
		       (SELECT count(*) FROM matches WHERE status = 'pending')
	`).Scan(&openPosts, &pendingMatches)
	return openPosts, pendingMatches, err
}

// Clear удаляет все записи приложения. Схема остаётся.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, `TRUNCATE messages, matches, posts, credentials, users`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
