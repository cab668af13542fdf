package storage

import (
	"context"
	"sort"
	"sync"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// DriverMemory keeps state in process memory only.
const DriverMemory = "memory"

// MemoryRepository is a volatile state backend; contents are lost on restart.
type MemoryRepository struct {
	mu        sync.Mutex
	state     map[string]map[string][]byte
	reminders map[reminderKey]domain.Reminder
}

type reminderKey struct {
	entityID string
	name     string
}

var _ ports.StateBackend = (*MemoryRepository)(nil)
var _ ports.ReminderStore = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state:     map[string]map[string][]byte{},
		reminders: map[reminderKey]domain.Reminder{},
	}
}

// Scope returns the state store of a single entity.
func (m *MemoryRepository) Scope(entityID string) ports.StateStore {
	return &memoryScope{repo: m, entityID: entityID}
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}

type memoryScope struct {
	repo     *MemoryRepository
	entityID string
}

func (s *memoryScope) TryCreate(_ context.Context, key string, value []byte) (bool, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	entity := s.repo.entity(s.entityID)
	if _, ok := entity[key]; ok {
		return false, nil
	}
	entity[key] = clone(value)
	return true, nil
}

func (s *memoryScope) Set(_ context.Context, key string, value []byte) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	s.repo.entity(s.entityID)[key] = clone(value)
	return nil
}

func (s *memoryScope) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	value, ok := s.repo.state[s.entityID][key]
	if !ok {
		return nil, false, nil
	}
	return clone(value), true, nil
}

// must be called with mu held
func (m *MemoryRepository) entity(id string) map[string][]byte {
	entity, ok := m.state[id]
	if !ok {
		entity = map[string][]byte{}
		m.state[id] = entity
	}
	return entity
}

func (m *MemoryRepository) SaveReminder(_ context.Context, reminder domain.Reminder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := reminderKey{entityID: reminder.EntityID, name: reminder.Name}
	if _, ok := m.reminders[key]; ok {
		return false, nil
	}
	reminder.Payload = clone(reminder.Payload)
	m.reminders[key] = reminder
	return true, nil
}

func (m *MemoryRepository) LoadReminder(_ context.Context, entityID, name string) (domain.Reminder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reminder, ok := m.reminders[reminderKey{entityID: entityID, name: name}]
	return reminder, ok, nil
}

func (m *MemoryRepository) ListReminders(_ context.Context) ([]domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]domain.Reminder, 0, len(m.reminders))
	for _, r := range m.reminders {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EntityID != result[j].EntityID {
			return result[i].EntityID < result[j].EntityID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *MemoryRepository) DeleteReminder(_ context.Context, entityID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reminders, reminderKey{entityID: entityID, name: name})
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
