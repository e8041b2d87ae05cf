package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/common"
)

// Memory is an in-memory KV used by tests. MaxBytes, when non-zero, caps the
// total stored size so quota failures can be exercised.
type Memory struct {
	mu       sync.Mutex
	data     map[string][]byte
	bus      *event.Bus
	MaxBytes int
}

func NewMemory(bus *event.Bus) *Memory {
	return &Memory{data: make(map[string][]byte), bus: bus}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	if err := m.checkQuota(key, value); err != nil {
		m.mu.Unlock()
		return err
	}
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) List(ctx context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	old := m.data[key]
	updated, err := fn(old)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if updated == nil {
		delete(m.data, key)
	} else {
		if err := m.checkQuota(key, updated); err != nil {
			m.mu.Unlock()
			return err
		}
		m.data[key] = append([]byte(nil), updated...)
	}
	m.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) checkQuota(key string, value []byte) error {
	if m.MaxBytes <= 0 {
		return nil
	}
	total := len(value)
	for k, v := range m.data {
		if k == key {
			continue
		}
		total += len(v)
	}
	if total > m.MaxBytes {
		return fmt.Errorf("%w: %d bytes over %d limit", common.ErrQuotaExceeded, total-m.MaxBytes, m.MaxBytes)
	}
	return nil
}

func (m *Memory) notify(key string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(EventChanged, event.New(EventChanged, Change{Key: key}))
}
