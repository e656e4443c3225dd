// README: Arrival store backed by PostgreSQL; idempotent insert-if-absent.
package arrival

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rally/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// RecordArrival inserts the arrival record unless one already exists for
// (eventID, userID), in which case the stored record is returned unchanged.
// The unique constraint plus ON CONFLICT DO NOTHING makes this a single
// atomic step, so two overlapping aggregation passes that both qualify the
// same participant still produce exactly one row. created reports whether
// this call performed the insert.
func (s *Store) RecordArrival(ctx context.Context, eventID, userID types.ID, at time.Time) (Record, bool, error) {
	tag, err := s.db.Exec(ctx, `
        INSERT INTO arrivals (event_id, user_id, arrived_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (event_id, user_id) DO NOTHING`,
		string(eventID), string(userID), at,
	)
	if err != nil {
		return Record{}, false, err
	}
	created := tag.RowsAffected() == 1

	rec := Record{EventID: eventID, UserID: userID}
	row := s.db.QueryRow(ctx, `
        SELECT arrived_at FROM arrivals
        WHERE event_id = $1 AND user_id = $2`,
		string(eventID), string(userID),
	)
	if err := row.Scan(&rec.ArrivedAt); err != nil {
		return Record{}, false, err
	}
	return rec, created, nil
}

// ListArrivals returns all arrival records for the event, keyed by user.
// Aggregation fetches this once per pass, not once per participant.
func (s *Store) ListArrivals(ctx context.Context, eventID types.ID) (map[types.ID]Record, error) {
	rows, err := s.db.Query(ctx, `
        SELECT event_id, user_id, arrived_at
        FROM arrivals
        WHERE event_id = $1`, string(eventID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[types.ID]Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.EventID, &r.UserID, &r.ArrivedAt); err != nil {
			return nil, err
		}
		out[r.UserID] = r
	}
	return out, rows.Err()
}

// SaveTravelState upserts the last computed estimate for a participant.
func (s *Store) SaveTravelState(ctx context.Context, st TravelState) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO travel_states (event_id, user_id, eta_ms, distance_m, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (event_id, user_id)
        DO UPDATE SET eta_ms = EXCLUDED.eta_ms,
                      distance_m = EXCLUDED.distance_m,
                      updated_at = EXCLUDED.updated_at`,
		string(st.EventID), string(st.UserID),
		st.ETA.Milliseconds(), st.DistanceM, st.UpdatedAt,
	)
	return err
}
