// README: Optional background sweep over today's events.
package arrival

import (
	"context"
	"log/slog"
	"time"

	"rally/internal/metrics"
	"rally/internal/modules/event"
	"rally/internal/types"
)

// EventLister is the slice of the event service the sweeper needs.
type EventLister interface {
	ArrivingOn(ctx context.Context, t time.Time) ([]event.Event, error)
	Participants(ctx context.Context, eventID types.ID) ([]event.Participant, error)
}

// Sweeper periodically aggregates every event scheduled today, so arrivals
// are detected even when no client is polling. It drives exactly the same
// detector contract as demand-driven aggregation.
type Sweeper struct {
	agg      *Aggregator
	events   EventLister
	interval time.Duration
}

func NewSweeper(agg *Aggregator, events EventLister, interval time.Duration) *Sweeper {
	return &Sweeper{agg: agg, events: events, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()
	events, err := s.events.ArrivingOn(ctx, now)
	if err != nil {
		slog.Warn("sweep: list events failed", "err", err)
		return
	}
	for i := range events {
		ev := &events[i]
		parts, err := s.events.Participants(ctx, ev.ID)
		if err != nil {
			slog.Warn("sweep: list participants failed", "event_id", ev.ID, "err", err)
			continue
		}
		if _, err := s.agg.Aggregate(ctx, ev, parts, now); err != nil {
			slog.Warn("sweep: aggregation failed", "event_id", ev.ID, "err", err)
		}
	}
	metrics.SweepsRun.Inc()
}
