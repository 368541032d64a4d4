package storage

import (
	"chat-room/contract"
	"chat-room/domain"
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps the history in process memory, in append order.
// It is the default backend and the fake used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewMemoryStore(history ...domain.Message) *MemoryStore {
	return &MemoryStore{messages: slices.Clone(history)}
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.messages), nil
}

func (m *MemoryStore) Append(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := message.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

func (m *MemoryStore) Close() error { return nil }

var _ contract.MessageStore = (*MemoryStore)(nil)
