package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cindralabs/riskcore/api/schemas"
)

// Memory is an in-memory implementation of schemas.EntityStore with the same
// optimistic-versioning semantics as the PostgreSQL store. It backs unit
// tests and single-process deployments that do not need durability.
type Memory struct {
	mu       sync.RWMutex
	entities map[string][]byte
	versions map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entities: make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// Load retrieves a deep copy of the entity, so callers can never alias the
// stored snapshot.
func (m *Memory) Load(_ context.Context, id string) (*schemas.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %q not found", id)
	}
	var entity schemas.Entity
	if err := json.Unmarshal(doc, &entity); err != nil {
		return nil, err
	}
	entity.Version = m.versions[id]
	return &entity, nil
}

// Save applies the same conditional-write contract as the PostgreSQL store.
func (m *Memory) Save(_ context.Context, entity *schemas.Entity, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.versions[entity.ID]
	if expectedVersion == 0 && exists {
		return &schemas.VersionConflictError{EntityID: entity.ID, ExpectedVersion: expectedVersion}
	}
	if expectedVersion != 0 && current != expectedVersion {
		return &schemas.VersionConflictError{EntityID: entity.ID, ExpectedVersion: expectedVersion}
	}

	next := *entity
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	m.entities[entity.ID] = doc
	m.versions[entity.ID] = next.Version
	entity.Version = next.Version
	entity.UpdatedAt = next.UpdatedAt
	return nil
}

// ListAll returns up to limit entity snapshots in ID order.
func (m *Memory) ListAll(_ context.Context, limit int) ([]*schemas.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entities))
	for id := range m.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	entities := make([]*schemas.Entity, 0, len(ids))
	for _, id := range ids {
		var entity schemas.Entity
		if err := json.Unmarshal(m.entities[id], &entity); err != nil {
			return nil, err
		}
		entity.Version = m.versions[id]
		entities = append(entities, &entity)
	}
	return entities, nil
}

// ListDue scans the whole population; fine for the sizes this store serves.
func (m *Memory) ListDue(_ context.Context, now time.Time, limit int) ([]*schemas.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*schemas.Entity
	for id, doc := range m.entities {
		var entity schemas.Entity
		if err := json.Unmarshal(doc, &entity); err != nil {
			return nil, err
		}
		entity.Version = m.versions[id]

		trigger := false
		if d := slaDueAt(&entity); d != nil && !d.After(now) {
			trigger = true
		}
		if n := nextRunAt(&entity); n != nil && !n.After(now) {
			trigger = true
		}
		if trigger {
			due = append(due, &entity)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
