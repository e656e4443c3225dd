// README: Event aggregate and participant membership.
package event

import (
	"time"

	"rally/internal/types"
)

// Profile is the travel mode used to parameterize routing queries.
type Profile string

const (
	ProfileCar  Profile = "car"
	ProfileBike Profile = "bike"
	ProfileFoot Profile = "foot"
)

// ValidProfile reports whether p is a known travel profile. The empty profile
// is valid and means "use the service default".
func ValidProfile(p Profile) bool {
	switch p {
	case "", ProfileCar, ProfileBike, ProfileFoot:
		return true
	}
	return false
}

// Event is immutable as far as the arrival engine is concerned; mutations
// happen through the CRUD surface before aggregation ever sees the event.
type Event struct {
	ID        types.ID
	Title     string
	Address   string
	Location  types.Point
	ArrivalAt time.Time
	CreatorID types.ID
	CreatedAt time.Time
}

// Participant is a user's membership in one event, with an optional travel
// profile override.
type Participant struct {
	EventID  types.ID
	UserID   types.ID
	Profile  Profile
	JoinedAt time.Time
}
