package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

type gemKey struct {
	workspaceID string
	name        string
}

// MemoryStore is the volatile gem store: an in-process map for local
// development and tests. Data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	gems map[gemKey]model.Gem
}

// NewMemoryStore creates an empty in-memory gem store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{gems: make(map[gemKey]model.Gem)}
}

// Upsert creates or fully replaces a gem, preserving created_at and
// enabled for existing keys.
func (s *MemoryStore) Upsert(_ context.Context, params model.GemUpsert) (model.Gem, error) {
	name, err := model.ValidateName(params.Name)
	if err != nil {
		return model.Gem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	g := model.Gem{
		WorkspaceID:  params.WorkspaceID,
		Name:         name,
		Summary:      strings.TrimSpace(params.Summary),
		Body:         strings.TrimSpace(params.Body),
		SystemPrompt: strings.TrimSpace(params.SystemPrompt),
		InputFormat:  strings.TrimSpace(params.InputFormat),
		OutputFormat: strings.TrimSpace(params.OutputFormat),
		Enabled:      true,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	key := gemKey{params.WorkspaceID, name}
	if prev, ok := s.gems[key]; ok {
		g.CreatedAt = prev.CreatedAt
		g.Enabled = prev.Enabled
		if prev.CreatedBy != nil {
			g.CreatedBy = prev.CreatedBy
		}
	}
	s.gems[key] = g
	return g, nil
}

// Get returns the gem or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, workspaceID, name string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gems[gemKey{workspaceID, n}]
	if !ok {
		return model.Gem{}, ErrNotFound
	}
	return g, nil
}

// Delete removes the gem, reporting whether it existed.
func (s *MemoryStore) Delete(_ context.Context, workspaceID, name string) (bool, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := gemKey{workspaceID, n}
	if _, ok := s.gems[key]; !ok {
		return false, nil
	}
	delete(s.gems, key)
	return true, nil
}

// List returns up to min(limit, 200) gems, most recently created first.
func (s *MemoryStore) List(_ context.Context, workspaceID string, limit int) ([]model.Gem, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var gems []model.Gem
	for key, g := range s.gems {
		if key.workspaceID == workspaceID {
			gems = append(gems, g)
		}
	}
	sort.Slice(gems, func(i, j int) bool {
		if !gems[i].CreatedAt.Equal(gems[j].CreatedAt) {
			return gems[i].CreatedAt.After(gems[j].CreatedAt)
		}
		// Stable order for gems created within the same clock tick.
		return gems[i].Name < gems[j].Name
	})
	if len(gems) > limit {
		gems = gems[:limit]
	}
	return gems, nil
}

// SetEnabled toggles execution for a gem without touching other fields.
func (s *MemoryStore) SetEnabled(_ context.Context, workspaceID, name string, enabled bool, _ *string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := gemKey{workspaceID, n}
	g, ok := s.gems[key]
	if !ok {
		return model.Gem{}, ErrNotFound
	}
	g.Enabled = enabled
	g.UpdatedAt = time.Now().UTC()
	s.gems[key] = g
	return g, nil
}
