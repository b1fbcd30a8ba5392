package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"partyrooms/domain"
	"partyrooms/game"
)

// MemoryStore is the single-process store used when no database is
// configured. State does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	alarms map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		alarms: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(blob), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = slices.Clone(blob)
	return nil
}

func (s *MemoryStore) SetAlarm(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms[key] = at
	return nil
}

func (s *MemoryStore) DeleteAlarm(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alarms, key)
	return nil
}

func (s *MemoryStore) PendingAlarms(_ context.Context) ([]game.Alarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alarms := make([]game.Alarm, 0, len(s.alarms))
	for key, at := range s.alarms {
		alarms = append(alarms, game.Alarm{Key: key, FireAt: at})
	}
	slices.SortFunc(alarms, func(a, b game.Alarm) int { return a.FireAt.Compare(b.FireAt) })
	return alarms, nil
}
