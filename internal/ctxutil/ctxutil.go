package ctxutil

import (
	"context"
	"time"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyUserID key = iota
	keySessionID
	keyOpName
)

// WithUserID /UserID: id пользователя, прошедшего аутентификацию
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keyUserID).(string)
	return id, ok && id != ""
}

// WithSessionID /SessionID: jti токена текущей сессии
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keySessionID).(string)
	return id, ok && id != ""
}

// WithOp /Op: имя операции (для логов/трейса)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

var (
	DefaultDBTimeout = 5 * time.Second
)

// WithTimeout: обёртка над context.WithTimeout; d<=0 означает без таймаута.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithDBTimeout: стандартный таймаут для БД.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		// если у родителя осталось меньше DefaultDBTimeout: берем остаток
		if remain := time.Until(dl); remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
