// README: Location store backed by Redis GEO with Postgres snapshots.
package location

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rally/internal/types"
)

const (
	userGeoKey      = "location:users"
	updatedAtPrefix = "location:user:%s:updated_at"
	// Positions older than this are useless for arrival detection; let Redis
	// reclaim them.
	keyTTL = 24 * time.Hour
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) SetPosition(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, userGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	})
	pipe.Set(ctx, updatedAtKey(id), at.UTC().Format(time.RFC3339), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetPositions returns the last known position for each requested user.
// Users with no position in the cache are simply absent from the result.
func (s *Store) GetPositions(ctx context.Context, ids []types.ID) (map[types.ID]Position, error) {
	if len(ids) == 0 {
		return map[types.ID]Position{}, nil
	}

	members := make([]string, len(ids))
	tsKeys := make([]string, len(ids))
	for i, id := range ids {
		members[i] = string(id)
		tsKeys[i] = updatedAtKey(id)
	}

	coords, err := s.redis.GeoPos(ctx, userGeoKey, members...).Result()
	if err != nil {
		return nil, err
	}
	stamps, err := s.redis.MGet(ctx, tsKeys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[types.ID]Position, len(ids))
	for i, id := range ids {
		if coords[i] == nil {
			continue
		}
		p := Position{Point: types.Point{Lat: coords[i].Latitude, Lng: coords[i].Longitude}}
		if raw, ok := stamps[i].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				p.RecordedAt = t
			}
		}
		out[id] = p
	}
	return out, nil
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO location_snapshots (user_id, lat, lng, recorded_at)
        VALUES ($1, $2, $3, $4)`,
		string(snap.UserID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	)
	return err
}

func updatedAtKey(id types.ID) string {
	return fmt.Sprintf(updatedAtPrefix, string(id))
}
