package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisBroker struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisBroker(rdb *redis.Client, log *zap.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	ev.Topic = topic
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topics...)
	// ждём подтверждения подписки, иначе ранние публикации теряются
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	sub := newSubscription(out, func() error {
		close(done)
		return nil
	})

	// горутина владеет ps и out: закрывает их при Close или переполнении
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		in := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("bad realtime payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					b.log.Warn("realtime subscriber overflow", zap.String("channel", msg.Channel))
					sub.overflowed.Store(true)
					return
				}
			}
		}
	}()

	return sub, nil
}
