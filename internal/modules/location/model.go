// README: Live position and persisted snapshot types.
package location

import (
	"time"

	"rally/internal/types"
)

// Position is a user's last known coordinate and when it was reported.
// Staleness decisions belong to the consumer, not to this module.
type Position struct {
	Point      types.Point
	RecordedAt time.Time
}

// Snapshot is the append-only Postgres copy of a position update, kept for
// history and debugging; the hot path reads Redis only.
type Snapshot struct {
	ID         int64
	UserID     types.ID
	Position   types.Point
	RecordedAt time.Time
}
