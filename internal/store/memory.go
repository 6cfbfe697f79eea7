package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store used in tests and as a fallback when no
// workspace database is available. Values round-trip through JSON so it
// behaves identically to the sqlite-backed store.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte

	// FailSaves makes every Save return an error, for exercising the
	// swallow-persistence-failures paths.
	FailSaves bool
	// SaveCount counts successful Save calls per key.
	SaveCount map[string]int
}

func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}, SaveCount: map[string]int{}}
}

func (m *Memory) Save(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return context.DeadlineExceeded
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	m.SaveCount[key]++
	return nil
}

func (m *Memory) Load(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	data, ok := m.values[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// Has reports whether a key currently holds a value.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
