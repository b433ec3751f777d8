package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edubridge/edubridge-backend/internal/models"
)

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache { return &RedisCache{rdb: rdb} }

func key(id string) string { return "session:" + id }

func (c *RedisCache) Set(ctx context.Context, id string, u models.User, ttl time.Duration) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(id), raw, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, id string) (models.User, error) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.User{}, ErrNoSession
	}
	if err != nil {
		return models.User{}, err
	}
	var u models.User
	err = json.Unmarshal(raw, &u)
	return u, err
}

// Replace перезаписывает профиль только для живой сессии и сохраняет её TTL.
func (c *RedisCache) Replace(ctx context.Context, id string, u models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	err = c.rdb.SetArgs(ctx, key(id), raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNoSession
	}
	return err
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, key(id)).Err()
}
