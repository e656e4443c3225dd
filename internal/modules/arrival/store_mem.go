// README: In-memory arrival store for tests and single-node development.
package arrival

import (
	"context"
	"sync"
	"time"

	"rally/internal/types"
)

type stateKey struct {
	eventID types.ID
	userID  types.ID
}

// MemStore satisfies the same idempotency contract as the Postgres store;
// the mutex is the single-writer critical section keyed by (event, user).
type MemStore struct {
	mu       sync.Mutex
	arrivals map[stateKey]Record
	states   map[stateKey]TravelState
}

func NewMemStore() *MemStore {
	return &MemStore{
		arrivals: map[stateKey]Record{},
		states:   map[stateKey]TravelState{},
	}
}

func (s *MemStore) RecordArrival(_ context.Context, eventID, userID types.ID, at time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := stateKey{eventID, userID}
	if rec, ok := s.arrivals[k]; ok {
		return rec, false, nil
	}
	rec := Record{EventID: eventID, UserID: userID, ArrivedAt: at}
	s.arrivals[k] = rec
	return rec, true, nil
}

func (s *MemStore) ListArrivals(_ context.Context, eventID types.ID) (map[types.ID]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[types.ID]Record{}
	for k, rec := range s.arrivals {
		if k.eventID == eventID {
			out[k.userID] = rec
		}
	}
	return out, nil
}

func (s *MemStore) SaveTravelState(_ context.Context, st TravelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey{st.EventID, st.UserID}] = st
	return nil
}

// TravelStateFor returns the saved estimate, if any.
func (s *MemStore) TravelStateFor(eventID, userID types.ID) (TravelState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[stateKey{eventID, userID}]
	return st, ok
}
