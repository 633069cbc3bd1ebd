// Package lock keeps two sends of the same campaign from overlapping.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock held by another send")

type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	// Acquire never blocks waiting for the key; it fails with ErrLocked.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Memory is a process-local Locker for single-replica deployments.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: map[string]struct{}{}}
}

func (m *Memory) Acquire(_ context.Context, key string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrLocked
	}
	m.held[key] = struct{}{}
	return &memoryLease{m: m, key: key}, nil
}

type memoryLease struct {
	m    *Memory
	key  string
	once sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.m.mu.Lock()
		delete(l.m.held, l.key)
		l.m.mu.Unlock()
	})
	return nil
}
