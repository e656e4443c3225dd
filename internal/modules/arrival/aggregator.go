// README: Event aggregator orchestrates routing queries and arrival decisions.
package arrival

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"rally/internal/config"
	"rally/internal/metrics"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
	"rally/internal/types"
)

var ErrInvalidEvent = errors.New("invalid event state")

// ArrivalStore is the sole write path for arrivals. RecordArrival must be an
// atomic insert-if-absent: a plain check-then-insert would race when a web
// client and a mobile client poll the same event concurrently.
type ArrivalStore interface {
	RecordArrival(ctx context.Context, eventID, userID types.ID, at time.Time) (Record, bool, error)
	ListArrivals(ctx context.Context, eventID types.ID) (map[types.ID]Record, error)
	SaveTravelState(ctx context.Context, st TravelState) error
}

// RouteEstimator answers travel time and distance in meters between two
// points for a travel profile. Any failure means "no estimate"; the
// aggregator never retries.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, dest types.Point, profile string) (time.Duration, float64, error)
}

// PositionSource supplies last known live positions.
type PositionSource interface {
	Latest(ctx context.Context, ids []types.ID) (map[types.ID]location.Position, error)
}

type Aggregator struct {
	store     ArrivalStore
	routes    RouteEstimator
	positions PositionSource
	cfg       config.AggregationConfig
}

func NewAggregator(store ArrivalStore, routes RouteEstimator, positions PositionSource, cfg config.AggregationConfig) *Aggregator {
	return &Aggregator{store: store, routes: routes, positions: positions, cfg: cfg}
}

// Aggregate produces the per-participant ETA/distance/arrived view for one
// event. Detection is demand-driven: it runs when somebody asks for the view
// (or when the sweeper does), so an arrival inside the 200 m / one hour
// window that nobody polls for is delayed until the next call, never lost.
//
// Participants are independent failure domains: a routing failure for one
// yields a view with nil ETA/distance for that participant and touches
// nobody else. A store write failure fails the whole call so the caller
// never sees a partially persisted aggregate.
func (a *Aggregator) Aggregate(ctx context.Context, ev *event.Event, parts []event.Participant, now time.Time) ([]ParticipantView, error) {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if ev.ArrivalAt.IsZero() || !ev.Location.Valid() {
		return nil, ErrInvalidEvent
	}

	// One arrival read per pass, not per participant.
	arrivals, err := a.store.ListArrivals(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	today := SameUTCDay(now, ev.ArrivalAt)

	// One position read per pass, covering only participants that may need
	// a routing query.
	var need []types.ID
	if today {
		for _, p := range parts {
			if _, ok := arrivals[p.UserID]; !ok {
				need = append(need, p.UserID)
			}
		}
	}
	positions := map[types.ID]location.Position{}
	if len(need) > 0 {
		positions, err = a.positions.Latest(ctx, need)
		if err != nil {
			// Degrades to "no estimate" for everyone; the cache being down
			// must not fail the aggregate.
			slog.Warn("position lookup failed", "event_id", ev.ID, "err", err)
			positions = map[types.ID]location.Position{}
		}
	}

	if len(parts) == 0 {
		return []ParticipantView{}, nil
	}

	views := make([]ParticipantView, len(parts))
	var (
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)

	workers := a.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(parts) {
		workers = len(parts)
	}

	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := a.evaluate(ctx, ev, parts[i], arrivals, positions, today, now)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				views[i] = v
			}
		}()
	}
	for i := range parts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return views, nil
}

func (a *Aggregator) evaluate(ctx context.Context, ev *event.Event, p event.Participant,
	arrivals map[types.ID]Record, positions map[types.ID]location.Position,
	today bool, now time.Time) (ParticipantView, error) {

	view := ParticipantView{UserID: p.UserID}

	rec, already := arrivals[p.UserID]
	if Decide(already, today, nil, now, ev.ArrivalAt) == SkipNoQuery {
		if already {
			at := rec.ArrivedAt
			view.Arrived = true
			view.ArrivedAt = &at
		}
		return view, nil
	}

	pos, ok := positions[p.UserID]
	if !ok || a.stale(pos, now) {
		// No usable position: same outcome as a routing failure.
		return view, nil
	}

	profile := string(p.Profile)
	if profile == "" {
		profile = a.cfg.DefaultProfile
	}

	metrics.RoutingQueries.Inc()
	eta, dist, err := a.routes.Estimate(ctx, pos.Point, ev.Location, profile)
	if err != nil {
		metrics.RoutingFailures.Inc()
		slog.Debug("route estimate unavailable",
			"event_id", ev.ID, "user_id", p.UserID, "err", err)
		return view, nil
	}

	_ = a.store.SaveTravelState(ctx, TravelState{
		EventID:   ev.ID,
		UserID:    p.UserID,
		ETA:       eta,
		DistanceM: dist,
		UpdatedAt: now,
	})

	if Decide(false, today, &dist, now, ev.ArrivalAt) == MarkArrived {
		rec, created, err := a.store.RecordArrival(ctx, ev.ID, p.UserID, now)
		if err != nil {
			return view, err
		}
		if created {
			metrics.ArrivalsRecorded.Inc()
			slog.Info("participant arrived",
				"event_id", ev.ID, "user_id", p.UserID, "distance_m", dist)
		}
		at := rec.ArrivedAt
		view.Arrived = true
		view.ArrivedAt = &at
		return view, nil
	}

	view.ETA = &eta
	view.DistanceM = &dist
	return view, nil
}

// stale reports whether the position is too old to route on. A position with
// no recorded timestamp counts as stale.
func (a *Aggregator) stale(pos location.Position, now time.Time) bool {
	if a.cfg.LocationMaxAge <= 0 {
		return false
	}
	if pos.RecordedAt.IsZero() {
		return true
	}
	return now.Sub(pos.RecordedAt) > a.cfg.LocationMaxAge
}
