package app

import "sync"

// UploadLimiter не даёт начать вторую загрузку по тому же ключу, пока идёт первая.
type UploadLimiter struct {
	mu   sync.Mutex
	byID map[string]struct{}
}

func NewUploadLimiter() *UploadLimiter {
	return &UploadLimiter{byID: make(map[string]struct{})}
}

// TryAcquire не блокируется: ok=false, если ключ уже занят.
func (l *UploadLimiter) TryAcquire(key string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.byID[key]; busy {
		return nil, false
	}
	l.byID[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.byID, key)
			l.mu.Unlock()
		})
	}, true
}

func (l *UploadLimiter) Busy(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.byID[key]
	return busy
}
