// Package session issues bearer tokens and keeps the signed-in profile cached
// under the token id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/models"
)

var (
	ErrInvalidToken = &apperr.Error{Kind: apperr.KindAuth, Code: "invalid_token", Msg: "invalid or expired session"}
	ErrNoSession    = errors.New("session not found")
)

type Claims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Cache хранит копию профиля на время жизни сессии.
type Cache interface {
	Set(ctx context.Context, id string, u models.User, ttl time.Duration) error
	Get(ctx context.Context, id string) (models.User, error)
	Replace(ctx context.Context, id string, u models.User) error
	Delete(ctx context.Context, id string) error
}

type Session struct {
	ID   string
	User models.User
}

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	cache  Cache
	now    func() time.Time
}

func NewManager(secret, issuer string, ttl time.Duration, cache Cache) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, cache: cache, now: time.Now}
}

// Issue подписывает HS256-токен и кладёт профиль в кэш под jti.
func (m *Manager) Issue(ctx context.Context, u models.User) (token string, s Session, err error) {
	now := m.now().UTC()
	id := uuid.NewString()
	claims := Claims{
		UserID:   u.ID,
		UserType: string(u.UserType),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	if err := m.cache.Set(ctx, id, u, m.ttl); err != nil {
		return "", Session{}, fmt.Errorf("cache session: %w", err)
	}
	return token, Session{ID: id, User: u}, nil
}

// Authenticate проверяет подпись и наличие сессии в кэше.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return Session{}, apperr.Wrap(ErrInvalidToken, err)
	}
	u, err := m.cache.Get(ctx, claims.ID)
	if errors.Is(err, ErrNoSession) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return Session{ID: claims.ID, User: u}, nil
}

func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.cache.Delete(ctx, sessionID)
}

// Refresh обновляет закэшированный профиль, не продлевая сессию.
func (m *Manager) Refresh(ctx context.Context, sessionID string, u models.User) error {
	err := m.cache.Replace(ctx, sessionID, u)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}
