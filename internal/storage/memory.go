package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/edubridge/edubridge-backend/internal/apperr"
)

type memObject struct {
	data []byte
	ct   string
}

// Memory: бакет в памяти (dev без MONGO_URI и тесты).
type Memory struct {
	baseURL string

	mu    sync.Mutex
	objs  map[string]memObject
	puts  int
	fails error
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objs: make(map[string]memObject)}
}

// FailPuts makes every following Put return err (nil restores).
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	m.fails = err
	m.mu.Unlock()
}

// Puts: сколько раз вызывали Put.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *Memory) Put(_ context.Context, path, contentType string, r io.Reader) (string, error) {
	m.mu.Lock()
	m.puts++
	fail := m.fails
	m.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objs[path] = memObject{data: data, ct: contentType}
	m.mu.Unlock()
	return FileURL(m.baseURL, path), nil
}

func (m *Memory) Open(_ context.Context, path string) (io.ReadCloser, Object, error) {
	m.mu.Lock()
	o, ok := m.objs[path]
	m.mu.Unlock()
	if !ok {
		return nil, Object{}, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), Object{Path: path, ContentType: o.ct, Size: int64(len(o.data))}, nil
}

// Paths returns stored object paths.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objs))
	for p := range m.objs {
		out = append(out, p)
	}
	return out
}
