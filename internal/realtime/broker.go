// Package realtime fans change events out to live subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	TopicUsers   = "users"
	TopicPosts   = "posts"
	TopicMatches = "matches"
)

func MessagesTopic(matchID string) string { return "messages:" + matchID }

type Event struct {
	Topic string          `json:"topic"`
	Kind  string          `json:"kind"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

type Broker interface {
	Publisher
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

// Subscription доставляет события в C до вызова Close.
// Если подписчик не успевает читать, брокер закрывает C и ставит Overflowed:
// клиент должен переподписаться и взять свежий снимок.
type Subscription struct {
	C     <-chan Event
	once  sync.Once
	close func() error

	overflowed atomic.Bool
}

func newSubscription(c <-chan Event, closeFn func() error) *Subscription {
	return &Subscription{C: c, close: closeFn}
}

// Overflowed: подписка закрыта из-за переполнения буфера, а не вызовом Close.
func (s *Subscription) Overflowed() bool { return s.overflowed.Load() }

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.close() })
	return err
}

// Emit публикует событие; ошибки только логируются.
func Emit(ctx context.Context, pub Publisher, log *zap.Logger, topic, kind string, data any) {
	if pub == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Warn("realtime marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := pub.Publish(ctx, topic, Event{Topic: topic, Kind: kind, Data: raw}); err != nil {
		log.Warn("realtime publish failed", zap.String("topic", topic), zap.String("kind", kind), zap.Error(err))
	}
}
