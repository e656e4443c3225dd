// README: Arrival records, per-participant travel state and the aggregate view.
package arrival

import (
	"time"

	"rally/internal/types"
)

// Record marks that a participant physically arrived at an event. Append-only:
// at most one record exists per (event, user) and it is never updated or
// deleted while the event exists.
type Record struct {
	EventID   types.ID
	UserID    types.ID
	ArrivedAt time.Time
}

// TravelState is the last computed estimate for a participant within an
// event. Created lazily on the first aggregation pass that produces an
// estimate; only the engine writes it.
type TravelState struct {
	EventID   types.ID
	UserID    types.ID
	ETA       time.Duration
	DistanceM float64
	UpdatedAt time.Time
}

// ParticipantView is one row of the aggregate answer returned to callers.
// ETA and DistanceM are nil whenever no routing estimate was produced: the
// event is not today, the participant already arrived, or the routing
// provider had no answer.
type ParticipantView struct {
	UserID    types.ID
	ETA       *time.Duration
	DistanceM *float64
	Arrived   bool
	ArrivedAt *time.Time
}
