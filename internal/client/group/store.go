package group

import (
	"context"
	"sync"
)

// Store persists the local view of groups. Absence is signalled by
// (nil, nil), not an error.
type Store interface {
	Get(ctx context.Context, groupID string) (*Group, error)
	Put(ctx context.Context, g *Group) error
}

// MemoryStore is an in-process Store. Groups are copied on the way in and
// out so callers cannot mutate stored state through shared slices.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]Group
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]Group)}
}

func (s *MemoryStore) Get(ctx context.Context, groupID string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	copied := cloneGroup(g)
	return &copied, nil
}

func (s *MemoryStore) Put(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = cloneGroup(*g)
	return nil
}

func cloneGroup(g Group) Group {
	copied := g
	copied.Members = make([]Member, len(g.Members))
	copy(copied.Members, g.Members)
	return copied
}
