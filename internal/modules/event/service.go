// README: Event service implements creation, membership and lookups.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rally/internal/types"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidEvent = errors.New("invalid event state")
)

// Geocoder resolves an address to coordinates when the client does not
// provide them.
type Geocoder interface {
	Locate(ctx context.Context, address string) (types.Point, error)
}

type Service struct {
	store    *Store
	geocoder Geocoder
}

func NewService(store *Store, geocoder Geocoder) *Service {
	return &Service{store: store, geocoder: geocoder}
}

type CreateCommand struct {
	Title     string
	Address   string
	Location  *types.Point
	ArrivalAt time.Time
	CreatorID types.ID
}

type JoinCommand struct {
	EventID types.ID
	UserID  types.ID
	Profile Profile
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.Title == "" || cmd.CreatorID == "" {
		return "", ErrBadRequest
	}
	if cmd.ArrivalAt.IsZero() {
		return "", ErrInvalidEvent
	}

	loc := types.Point{}
	switch {
	case cmd.Location != nil:
		loc = *cmd.Location
	case cmd.Address != "" && s.geocoder != nil:
		p, err := s.geocoder.Locate(ctx, cmd.Address)
		if err != nil {
			return "", ErrBadRequest
		}
		loc = p
	default:
		return "", ErrBadRequest
	}
	if !loc.Valid() {
		return "", ErrInvalidEvent
	}

	e := &Event{
		ID:        types.ID(uuid.NewString()),
		Title:     cmd.Title,
		Address:   cmd.Address,
		Location:  loc,
		ArrivalAt: cmd.ArrivalAt.UTC(),
		CreatorID: cmd.CreatorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return "", err
	}
	// The creator always participates in their own event.
	if err := s.store.AddParticipant(ctx, Participant{
		EventID:  e.ID,
		UserID:   cmd.CreatorID,
		JoinedAt: e.CreatedAt,
	}); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Service) Join(ctx context.Context, cmd JoinCommand) error {
	if cmd.UserID == "" {
		return ErrBadRequest
	}
	if !ValidProfile(cmd.Profile) {
		return ErrBadRequest
	}
	if _, err := s.store.GetEvent(ctx, cmd.EventID); err != nil {
		return err
	}
	return s.store.AddParticipant(ctx, Participant{
		EventID:  cmd.EventID,
		UserID:   cmd.UserID,
		Profile:  cmd.Profile,
		JoinedAt: time.Now().UTC(),
	})
}

func (s *Service) Participants(ctx context.Context, eventID types.ID) ([]Participant, error) {
	return s.store.ListParticipants(ctx, eventID)
}

// ArrivingOn returns events scheduled on the UTC calendar day containing t.
func (s *Service) ArrivingOn(ctx context.Context, t time.Time) ([]Event, error) {
	day := t.UTC().Truncate(24 * time.Hour)
	return s.store.ListEventsArrivingBetween(ctx, day, day.Add(24*time.Hour))
}
