// README: Location service handles position updates and lookups.
package location

import (
	"context"
	"errors"
	"time"

	"rally/internal/types"
)

var ErrBadPosition = errors.New("position outside coordinate range")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Update writes the position to the Redis cache and appends a Postgres
// snapshot. The snapshot write is best-effort; losing history must not fail
// a live update.
func (s *Service) Update(ctx context.Context, id types.ID, pos types.Point) error {
	if !pos.Valid() {
		return ErrBadPosition
	}
	now := time.Now().UTC()
	if err := s.store.SetPosition(ctx, id, pos, now); err != nil {
		return err
	}
	_ = s.store.AppendSnapshot(ctx, Snapshot{UserID: id, Position: pos, RecordedAt: now})
	return nil
}

// Latest returns last known positions for the given users.
func (s *Service) Latest(ctx context.Context, ids []types.ID) (map[types.ID]Position, error) {
	return s.store.GetPositions(ctx, ids)
}
