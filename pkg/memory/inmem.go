package memory

import (
	"context"
	"sync"

	"github.com/loomkg/loom/pkg/model"
)

// InMemoryStore keeps conversation histories in a mutex-guarded map, for
// tests and single-process deployments.
type InMemoryStore struct {
	mu            sync.Mutex
	conversations map[string][]model.Turn
}

// NewInMemoryStore creates an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: map[string][]model.Turn{}}
}

func (s *InMemoryStore) Append(ctx context.Context, conversationID string, turns ...model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], turns...)
	return nil
}

func (s *InMemoryStore) History(ctx context.Context, conversationID string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.conversations[conversationID]
	out := make([]model.Turn, len(history))
	copy(out, history)
	return out, nil
}

func (s *InMemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}
