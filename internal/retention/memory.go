package retention

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a fixed-capacity ring buffer keyed by insertion sequence.
type memoryStore struct {
	mu       sync.Mutex
	ring     []Entry
	capacity int
	next     uint64 // total inserts; ring index is next % capacity
	clock    func() time.Time
}

// NewMemoryStore returns an in-memory store with the given cap.
func NewMemoryStore(capacity int) Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryStore{
		ring:     make([]Entry, capacity),
		capacity: capacity,
		clock:    time.Now,
	}
}

func (m *memoryStore) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.clock().UTC()
	}
	m.ring[m.next%uint64(m.capacity)] = entry
	m.next++
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := int(m.next)
	if count > m.capacity {
		count = m.capacity
	}
	out := make([]Entry, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, m.ring[(m.next-uint64(i))%uint64(m.capacity)])
	}
	if len(out) > m.capacity {
		return nil, ErrCapViolation
	}
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring = make([]Entry, m.capacity)
	m.next = 0
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}
