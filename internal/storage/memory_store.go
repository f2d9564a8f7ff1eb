package storage

import (
	"context"
	"sync"
)

// MemoryRunStore хранит закодированные интервалы в памяти процесса.
// Используется в тестах и при backend: memory.
type MemoryRunStore struct {
	mu      sync.RWMutex
	codec   *Codec
	records map[string][]byte
	closed  bool
}

// NewMemoryRunStore создает пустое хранилище
func NewMemoryRunStore(codec *Codec) *MemoryRunStore {
	return &MemoryRunStore{
		codec:   codec,
		records: make(map[string][]byte),
	}
}

func (m *MemoryRunStore) SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error {
	data, err := m.codec.Encode(runs)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotReady
	}
	m.records[key.String()] = data
	return nil
}

func (m *MemoryRunStore) LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, false, ErrNotReady
	}
	data, ok := m.records[key.String()]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	runs, err := m.codec.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return runs, true, nil
}

// Len количество сохранённых чанков
func (m *MemoryRunStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryRunStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
