package store

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
)

// MemoryStore holds latest observations in a map.
type MemoryStore struct {
	mu     sync.RWMutex
	latest map[string]domain.Observation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{latest: make(map[string]domain.Observation)}
}

// Apply merges a batch of observations.
func (s *MemoryStore) Apply(_ context.Context, batch []domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obs := range batch {
		s.latest[obs.StationID] = merge(s.latest[obs.StationID], obs)
	}
	return nil
}

// Latest returns the merged observation for a station.
func (s *MemoryStore) Latest(_ context.Context, stationID string) (domain.Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs, ok := s.latest[stationID]
	if !ok {
		return domain.Observation{}, false, nil
	}
	return clone(obs), true, nil
}

// Stations lists every known station per kind with its validity at now.
func (s *MemoryStore) Stations(_ context.Context, now time.Time, maxAge time.Duration) ([]domain.SensorStation, error) {
	s.mu.RLock()
	latest := make([]domain.Observation, 0, len(s.latest))
	for _, obs := range s.latest {
		latest = append(latest, obs)
	}
	s.mu.RUnlock()

	return stationsFromLatest(latest, now, maxAge), nil
}
