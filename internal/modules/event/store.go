// README: Event store backed by PostgreSQL.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rally/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO events (id, title, address, lat, lng, arrival_at, creator_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.ID), e.Title, e.Address,
		e.Location.Lat, e.Location.Lng,
		e.ArrivalAt, string(e.CreatorID), e.CreatedAt,
	)
	return err
}

func (s *Store) GetEvent(ctx context.Context, id types.ID) (*Event, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, title, address, lat, lng, arrival_at, creator_id, created_at
        FROM events
        WHERE id = $1`, string(id),
	)

	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Address, &e.Location.Lat, &e.Location.Lng,
		&e.ArrivalAt, &e.CreatorID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddParticipant upserts the membership row; re-joining only refreshes the
// travel profile override.
func (s *Store) AddParticipant(ctx context.Context, p Participant) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO event_participants (event_id, user_id, travel_profile, joined_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (event_id, user_id)
        DO UPDATE SET travel_profile = EXCLUDED.travel_profile`,
		string(p.EventID), string(p.UserID), string(p.Profile), p.JoinedAt,
	)
	return err
}

func (s *Store) ListParticipants(ctx context.Context, eventID types.ID) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `
        SELECT event_id, user_id, travel_profile, joined_at
        FROM event_participants
        WHERE event_id = $1
        ORDER BY joined_at`, string(eventID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.EventID, &p.UserID, &p.Profile, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListEventsArrivingBetween returns events whose scheduled arrival falls in
// [from, to); the sweeper uses it to find today's events.
func (s *Store) ListEventsArrivingBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, title, address, lat, lng, arrival_at, creator_id, created_at
        FROM events
        WHERE arrival_at >= $1 AND arrival_at < $2
        ORDER BY arrival_at`, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Address, &e.Location.Lat, &e.Location.Lng,
			&e.ArrivalAt, &e.CreatorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
