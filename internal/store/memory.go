package store

import (
	"context"
	"sort"
	"sync"

	"roster-cli/internal/model"
)

// Memory is an in-process Backend. Used by tests and `--backend memory`.
type Memory struct {
	mu      sync.RWMutex
	members map[string]map[string]model.Member
	// meta[collection][memberID][key]
	meta map[string]map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		members: map[string]map[string]model.Member{},
		meta:    map[string]map[string]map[string]string{},
	}
}

func (s *Memory) ListMembers(_ context.Context, collection string) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Member, 0, len(s.members[collection]))
	for _, m := range s.members[collection] {
		out = append(out, m)
	}
	sortCreated(out)
	return out, nil
}

func (s *Memory) GetMember(_ context.Context, collection, id string) (model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[collection][id]
	if !ok {
		return model.Member{}, memberNotFound(id)
	}
	return m, nil
}

func (s *Memory) PutMember(_ context.Context, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(m)
	return nil
}

func (s *Memory) putLocked(m model.Member) {
	col := s.members[m.Collection]
	if col == nil {
		col = map[string]model.Member{}
		s.members[m.Collection] = col
	}
	col[m.ID] = m
}

func (s *Memory) DeleteMember(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[collection][id]; !ok {
		return memberNotFound(id)
	}
	delete(s.members[collection], id)
	delete(s.meta[collection], id)
	return nil
}

func (s *Memory) SetRanks(ctx context.Context, collection string, ranks map[string]int) error {
	return s.CommitRanks(ctx, collection, ranks, MetaChange{})
}

func (s *Memory) CommitRanks(_ context.Context, collection string, ranks map[string]int, meta MetaChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.members[collection]
	for id := range ranks {
		if _, ok := col[id]; !ok {
			return memberNotFound(id)
		}
	}
	if !meta.empty() {
		for id := range meta.Set {
			if _, ok := col[id]; !ok {
				return memberNotFound(id)
			}
		}
	}
	for id, r := range ranks {
		m := col[id]
		m.Rank = r
		col[id] = m
	}
	if meta.empty() {
		return nil
	}
	if meta.Clear {
		s.clearMetaLocked(collection, meta.Key)
	}
	s.setMetaLocked(collection, meta.Key, meta.Set)
	return nil
}

func (s *Memory) ReplaceMembers(_ context.Context, collection string, deleteExisting bool, members []model.Member) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	if deleteExisting {
		deleted = len(s.members[collection])
		delete(s.members, collection)
		delete(s.meta, collection)
	}
	for _, m := range members {
		m.Collection = collection
		s.putLocked(m)
	}
	return deleted, nil
}

func (s *Memory) GetMeta(_ context.Context, collection, id, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.meta[collection][id][key]
	return v, ok, nil
}

func (s *Memory) SetMeta(_ context.Context, collection, key string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range values {
		if _, ok := s.members[collection][id]; !ok {
			return memberNotFound(id)
		}
	}
	s.setMetaLocked(collection, key, values)
	return nil
}

func (s *Memory) setMetaLocked(collection, key string, values map[string]string) {
	if len(values) == 0 {
		return
	}
	col := s.meta[collection]
	if col == nil {
		col = map[string]map[string]string{}
		s.meta[collection] = col
	}
	for id, v := range values {
		if col[id] == nil {
			col[id] = map[string]string{}
		}
		col[id][key] = v
	}
}

func (s *Memory) ListMeta(_ context.Context, collection, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]string{}
	for id, kv := range s.meta[collection] {
		if v, ok := kv[key]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *Memory) ClearMeta(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearMetaLocked(collection, key)
	return nil
}

func (s *Memory) clearMetaLocked(collection, key string) {
	for _, kv := range s.meta[collection] {
		delete(kv, key)
	}
}

func (s *Memory) Close() error { return nil }

func sortCreated(items []model.Member) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
