package store

import (
	"context"
	"sync"
)

// Memory keeps the document in process memory. A nil initial value means
// the document does not exist yet.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemory(initial []byte) *Memory {
	m := &Memory{}
	if initial != nil {
		m.data = append([]byte(nil), initial...)
	}
	return m
}

func (m *Memory) Driver() string { return DriverMemory }

func (m *Memory) Read(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(make([]byte, 0, len(data)), data...)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
