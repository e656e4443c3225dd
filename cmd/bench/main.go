// README: Synthetic aggregation benchmark (no network, in-memory store).
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"rally/internal/config"
	"rally/internal/modules/arrival"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
	"rally/internal/types"
)

// constantRoutes answers every estimate instantly with a fixed result, so the
// benchmark measures aggregator overhead rather than provider latency.
type constantRoutes struct {
	eta  time.Duration
	dist float64
}

func (r constantRoutes) Estimate(context.Context, types.Point, types.Point, string) (time.Duration, float64, error) {
	return r.eta, r.dist, nil
}

type staticPositions struct {
	positions map[types.ID]location.Position
}

func (p staticPositions) Latest(_ context.Context, ids []types.ID) (map[types.ID]location.Position, error) {
	out := make(map[types.ID]location.Position, len(ids))
	for _, id := range ids {
		if pos, ok := p.positions[id]; ok {
			out[id] = pos
		}
	}
	return out, nil
}

func main() {
	participants := flag.Int("participants", 50, "participants per event")
	workers := flag.Int("workers", 8, "aggregation worker pool size")
	passes := flag.Int("passes", 1000, "aggregation passes to run")
	flag.Parse()

	now := time.Now().UTC()
	ev := &event.Event{
		ID:        "bench-event",
		Title:     "bench",
		Location:  types.Point{Lat: 52.52, Lng: 13.405},
		ArrivalAt: now.Add(4 * time.Hour),
	}

	parts := make([]event.Participant, *participants)
	positions := map[types.ID]location.Position{}
	for i := range parts {
		id := types.ID(fmt.Sprintf("user-%d", i))
		parts[i] = event.Participant{EventID: ev.ID, UserID: id}
		positions[id] = location.Position{
			Point:      types.Point{Lat: 52.5, Lng: 13.4},
			RecordedAt: now,
		}
	}

	agg := arrival.NewAggregator(
		arrival.NewMemStore(),
		constantRoutes{eta: 25 * time.Minute, dist: 5000},
		staticPositions{positions: positions},
		config.AggregationConfig{Workers: *workers, DefaultProfile: "car", LocationMaxAge: time.Hour},
	)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < *passes; i++ {
		if _, err := agg.Aggregate(ctx, ev, parts, now); err != nil {
			fmt.Println("aggregate failed:", err)
			return
		}
	}
	elapsed := time.Since(start)

	total := *passes * *participants
	fmt.Printf("passes=%d participants=%d workers=%d\n", *passes, *participants, *workers)
	fmt.Printf("elapsed=%s per-pass=%s participant-evals/s=%.0f\n",
		elapsed, elapsed/time.Duration(*passes), float64(total)/elapsed.Seconds())
}
