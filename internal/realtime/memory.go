package realtime

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

type memSub struct {
	ch  chan Event
	sub *Subscription
}

// MemoryBroker: брокер в памяти процесса, когда Redis не настроен.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memSub]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memSub]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string, ev Event) error {
	ev.Topic = topic
	var slow []*memSub
	b.mu.RLock()
	for s := range b.subs[topic] {
		select {
		case s.ch <- ev:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	// пропущенное событие не вернуть: закрываем подписку, клиент возьмёт новый снимок
	for _, s := range slow {
		s.sub.overflowed.Store(true)
		_ = s.sub.Close()
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topics ...string) (*Subscription, error) {
	ms := &memSub{ch: make(chan Event, subscriberBuffer)}
	ms.sub = newSubscription(ms.ch, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range topics {
			delete(b.subs[t], ms)
			if len(b.subs[t]) == 0 {
				delete(b.subs, t)
			}
		}
		close(ms.ch)
		return nil
	})

	b.mu.Lock()
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[*memSub]struct{})
		}
		b.subs[t][ms] = struct{}{}
	}
	b.mu.Unlock()
	return ms.sub, nil
}
