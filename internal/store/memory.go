package store

import (
	"context"
	"sync"

	"coolcar/internal/domain"
)

// Memory is a process-local BlobStore, used when persistence is disabled and in tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, namespace string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[namespace]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(_ context.Context, namespace string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[namespace] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Close() error { return nil }
