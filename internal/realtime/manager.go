package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/edubridge/edubridge-backend/internal/metrics"
)

var ErrManagerClosed = errors.New("realtime manager closed")

// Manager ведёт подписки по сессиям: Start при подключении, Stop при
// отключении или выходе, Close при остановке процесса.
type Manager struct {
	broker Broker

	mu     sync.Mutex
	subs   map[string][]*Subscription
	closed bool
}

func NewManager(b Broker) *Manager {
	return &Manager{broker: b, subs: make(map[string][]*Subscription)}
}

func (m *Manager) Start(ctx context.Context, sessionID string, topics ...string) (*Subscription, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.mu.Unlock()

	sub, err := m.broker.Subscribe(ctx, topics...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = sub.Close()
		return nil, ErrManagerClosed
	}
	m.subs[sessionID] = append(m.subs[sessionID], sub)
	metrics.Subscriptions.Inc()
	return sub, nil
}

// Release закрывает одну подписку сессии (клиент отключился).
func (m *Manager) Release(sessionID string, sub *Subscription) {
	m.mu.Lock()
	list := m.subs[sessionID]
	for i, s := range list {
		if s == sub {
			m.subs[sessionID] = append(list[:i], list[i+1:]...)
			metrics.Subscriptions.Dec()
			break
		}
	}
	if len(m.subs[sessionID]) == 0 {
		delete(m.subs, sessionID)
	}
	m.mu.Unlock()
	_ = sub.Close()
}

// Stop закрывает все подписки сессии (выход из аккаунта).
func (m *Manager) Stop(sessionID string) {
	m.mu.Lock()
	list := m.subs[sessionID]
	delete(m.subs, sessionID)
	m.mu.Unlock()
	for _, s := range list {
		_ = s.Close()
		metrics.Subscriptions.Dec()
	}
}

func (m *Manager) Active(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[sessionID])
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := m.subs
	m.subs = make(map[string][]*Subscription)
	m.mu.Unlock()
	for _, list := range all {
		for _, s := range list {
			_ = s.Close()
			metrics.Subscriptions.Dec()
		}
	}
}
