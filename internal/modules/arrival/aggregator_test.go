package arrival

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rally/internal/config"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
	"rally/internal/types"
)

type routeAnswer struct {
	eta  time.Duration
	dist float64
	err  error
}

// fakeRoutes answers estimates keyed by the origin point and counts calls.
type fakeRoutes struct {
	mu      sync.Mutex
	answers map[types.Point]routeAnswer
	calls   int
}

func (f *fakeRoutes) Estimate(_ context.Context, origin, _ types.Point, _ string) (time.Duration, float64, error) {
	f.mu.Lock()
	f.calls++
	ans, ok := f.answers[origin]
	f.mu.Unlock()
	if !ok {
		return 0, 0, errors.New("no answer configured for origin")
	}
	if ans.err != nil {
		return 0, 0, ans.err
	}
	return ans.eta, ans.dist, nil
}

func (f *fakeRoutes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePositions struct {
	m   map[types.ID]location.Position
	err error
}

func (f fakePositions) Latest(_ context.Context, ids []types.ID) (map[types.ID]location.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[types.ID]location.Position{}
	for _, id := range ids {
		if p, ok := f.m[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// failingWriteStore fails every arrival write; reads pass through.
type failingWriteStore struct {
	*MemStore
}

func (s failingWriteStore) RecordArrival(context.Context, types.ID, types.ID, time.Time) (Record, bool, error) {
	return Record{}, false, errors.New("storage unavailable")
}

var eventArrival = time.Date(2026, 5, 17, 18, 0, 0, 0, time.UTC)

func testEvent() *event.Event {
	return &event.Event{
		ID:        "ev1",
		Title:     "picnic",
		Location:  types.Point{Lat: 52.520, Lng: 13.405},
		ArrivalAt: eventArrival,
		CreatorID: "u0",
	}
}

func testConfig() config.AggregationConfig {
	return config.AggregationConfig{
		Workers:        4,
		DefaultProfile: "car",
		LocationMaxAge: 10 * time.Minute,
	}
}

func participant(userID types.ID) event.Participant {
	return event.Participant{EventID: "ev1", UserID: userID}
}

func freshPosition(lat, lng float64, now time.Time) location.Position {
	return location.Position{Point: types.Point{Lat: lat, Lng: lng}, RecordedAt: now}
}

func TestAggregateFutureEventSkipsRouting(t *testing.T) {
	now := eventArrival.Add(-48 * time.Hour)
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": freshPosition(52.51, 13.40, now),
	}}
	agg := NewAggregator(NewMemStore(), routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if routes.callCount() != 0 {
		t.Fatalf("expected no routing calls for a future event, got %d", routes.callCount())
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.Arrived || v.ETA != nil || v.DistanceM != nil {
		t.Fatalf("expected empty pending view, got %+v", v)
	}
}

func TestAggregatePendingFarAway(t *testing.T) {
	// Participant 5000 m out, four hours early: ETA and distance surface,
	// arrived stays false.
	now := eventArrival.Add(-4 * time.Hour)
	origin := types.Point{Lat: 52.50, Lng: 13.39}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 25 * time.Minute, dist: 5000},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	store := NewMemStore()
	agg := NewAggregator(store, routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	v := views[0]
	if v.Arrived {
		t.Fatal("expected arrived=false")
	}
	if v.ETA == nil || *v.ETA != 25*time.Minute {
		t.Fatalf("expected eta 25m, got %v", v.ETA)
	}
	if v.DistanceM == nil || *v.DistanceM != 5000 {
		t.Fatalf("expected distance 5000, got %v", v.DistanceM)
	}
	if st, ok := store.TravelStateFor("ev1", "u1"); !ok || st.DistanceM != 5000 {
		t.Fatalf("expected travel state saved, got %+v (ok=%v)", st, ok)
	}
}

func TestAggregateMarksArrival(t *testing.T) {
	// Same participant now 150 m out, thirty minutes early: exactly one
	// record is written and the view flips to arrived.
	now := eventArrival.Add(-30 * time.Minute)
	origin := types.Point{Lat: 52.5199, Lng: 13.4049}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 2 * time.Minute, dist: 150},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	store := NewMemStore()
	agg := NewAggregator(store, routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	v := views[0]
	if !v.Arrived {
		t.Fatal("expected arrived=true")
	}
	if v.ArrivedAt == nil || !v.ArrivedAt.Equal(now) {
		t.Fatalf("expected arrivedAt=%v, got %v", now, v.ArrivedAt)
	}
	recs, err := store.ListArrivals(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("list arrivals: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 arrival record, got %d", len(recs))
	}
}

func TestAggregateArrivedIsMonotonic(t *testing.T) {
	now := eventArrival.Add(-30 * time.Minute)
	origin := types.Point{Lat: 52.5199, Lng: 13.4049}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 2 * time.Minute, dist: 150},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	store := NewMemStore()
	agg := NewAggregator(store, routes, positions, testConfig())
	parts := []event.Participant{participant("u1")}

	if _, err := agg.Aggregate(context.Background(), testEvent(), parts, now); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	callsAfterFirst := routes.callCount()

	// Later pass: participant may have wandered off again, but arrived is
	// absorbing and no further routing query is made for them.
	later := now.Add(10 * time.Minute)
	views, err := agg.Aggregate(context.Background(), testEvent(), parts, later)
	if err != nil {
		t.Fatalf("second aggregate: %v", err)
	}
	if !views[0].Arrived {
		t.Fatal("arrived reverted to false")
	}
	if views[0].ArrivedAt == nil || !views[0].ArrivedAt.Equal(now) {
		t.Fatalf("expected original arrival instant %v, got %v", now, views[0].ArrivedAt)
	}
	if routes.callCount() != callsAfterFirst {
		t.Fatalf("expected no routing calls after arrival, got %d extra",
			routes.callCount()-callsAfterFirst)
	}
}

func TestAggregateBoundaryInclusive(t *testing.T) {
	// Distance exactly 200.0 m at exactly eventArrival-1h must arrive.
	now := eventArrival.Add(-ArriveWindow)
	origin := types.Point{Lat: 52.5185, Lng: 13.4040}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 3 * time.Minute, dist: 200.0},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	agg := NewAggregator(NewMemStore(), routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !views[0].Arrived {
		t.Fatal("expected arrival on the inclusive 200m / -1h boundary")
	}
}

func TestAggregateRoutingFailureIsNonFatal(t *testing.T) {
	now := eventArrival.Add(-2 * time.Hour)
	okOrigin := types.Point{Lat: 52.50, Lng: 13.39}
	badOrigin := types.Point{Lat: 52.49, Lng: 13.38}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		okOrigin:  {eta: 20 * time.Minute, dist: 4000},
		badOrigin: {err: errors.New("provider timeout")},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: okOrigin, RecordedAt: now},
		"u2": {Point: badOrigin, RecordedAt: now},
	}}
	agg := NewAggregator(NewMemStore(), routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(),
		[]event.Participant{participant("u1"), participant("u2")}, now)
	if err != nil {
		t.Fatalf("aggregate should not fail on routing errors: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	byUser := map[types.ID]ParticipantView{}
	for _, v := range views {
		byUser[v.UserID] = v
	}
	if byUser["u1"].ETA == nil {
		t.Fatal("expected estimate for u1")
	}
	if v := byUser["u2"]; v.ETA != nil || v.DistanceM != nil || v.Arrived {
		t.Fatalf("expected empty view for u2, got %+v", v)
	}
}

func TestAggregateMissingOrStalePosition(t *testing.T) {
	now := eventArrival.Add(-2 * time.Hour)
	staleOrigin := types.Point{Lat: 52.50, Lng: 13.39}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		staleOrigin: {eta: time.Minute, dist: 100},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		// u1 has no position at all; u2's is older than LocationMaxAge.
		"u2": {Point: staleOrigin, RecordedAt: now.Add(-time.Hour)},
	}}
	agg := NewAggregator(NewMemStore(), routes, positions, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(),
		[]event.Participant{participant("u1"), participant("u2")}, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if routes.callCount() != 0 {
		t.Fatalf("expected no routing calls for missing/stale positions, got %d", routes.callCount())
	}
	for _, v := range views {
		if v.Arrived || v.ETA != nil || v.DistanceM != nil {
			t.Fatalf("expected empty view for %s, got %+v", v.UserID, v)
		}
	}
}

func TestAggregateInvalidEvent(t *testing.T) {
	now := eventArrival.Add(-time.Hour)
	agg := NewAggregator(NewMemStore(), &fakeRoutes{}, fakePositions{}, testConfig())

	noArrival := testEvent()
	noArrival.ArrivalAt = time.Time{}
	if _, err := agg.Aggregate(context.Background(), noArrival, nil, now); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for zero arrival time, got %v", err)
	}

	badCoords := testEvent()
	badCoords.Location = types.Point{Lat: 123.0, Lng: 500.0}
	if _, err := agg.Aggregate(context.Background(), badCoords, nil, now); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for malformed coordinates, got %v", err)
	}
}

func TestAggregateStoreWriteFailureFailsCall(t *testing.T) {
	now := eventArrival.Add(-30 * time.Minute)
	origin := types.Point{Lat: 52.5199, Lng: 13.4049}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 2 * time.Minute, dist: 150},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	agg := NewAggregator(failingWriteStore{NewMemStore()}, routes, positions, testConfig())

	if _, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now); err == nil {
		t.Fatal("expected aggregate to fail when the arrival write fails")
	}
}

func TestAggregatePositionSourceFailureDegrades(t *testing.T) {
	now := eventArrival.Add(-2 * time.Hour)
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{}}
	agg := NewAggregator(NewMemStore(), routes, fakePositions{err: errors.New("redis down")}, testConfig())

	views, err := agg.Aggregate(context.Background(), testEvent(), []event.Participant{participant("u1")}, now)
	if err != nil {
		t.Fatalf("aggregate should degrade, not fail: %v", err)
	}
	if views[0].ETA != nil || views[0].Arrived {
		t.Fatalf("expected empty view, got %+v", views[0])
	}
}

func TestConcurrentAggregationSingleRecord(t *testing.T) {
	// Two overlapping passes (web + mobile client polling) both observe
	// alreadyArrived=false and both qualify the participant. Exactly one
	// record must exist afterwards.
	now := eventArrival.Add(-30 * time.Minute)
	origin := types.Point{Lat: 52.5199, Lng: 13.4049}
	routes := &fakeRoutes{answers: map[types.Point]routeAnswer{
		origin: {eta: 2 * time.Minute, dist: 150},
	}}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
	}}
	store := NewMemStore()
	agg := NewAggregator(store, routes, positions, testConfig())
	parts := []event.Participant{participant("u1")}

	const passes = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, passes)
	views := make(chan ParticipantView, passes)

	for i := 0; i < passes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			vs, err := agg.Aggregate(context.Background(), testEvent(), parts, now)
			errs <- err
			if err == nil {
				views <- vs[0]
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	close(views)

	for err := range errs {
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
	}
	for v := range views {
		if !v.Arrived {
			t.Fatalf("expected arrived=true in every pass, got %+v", v)
		}
		if v.ArrivedAt == nil || !v.ArrivedAt.Equal(now) {
			t.Fatalf("expected a single shared arrival instant, got %v", v.ArrivedAt)
		}
	}

	recs, err := store.ListArrivals(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("list arrivals: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record after concurrent passes, got %d", len(recs))
	}
}

func TestAggregateProfileFallback(t *testing.T) {
	now := eventArrival.Add(-2 * time.Hour)
	origin := types.Point{Lat: 52.50, Lng: 13.39}

	var mu sync.Mutex
	var seen []string
	routes := &recordingRoutes{
		inner: &fakeRoutes{answers: map[types.Point]routeAnswer{
			origin: {eta: 10 * time.Minute, dist: 3000},
		}},
		record: func(profile string) {
			mu.Lock()
			seen = append(seen, profile)
			mu.Unlock()
		},
	}
	positions := fakePositions{m: map[types.ID]location.Position{
		"u1": {Point: origin, RecordedAt: now},
		"u2": {Point: origin, RecordedAt: now},
	}}
	agg := NewAggregator(NewMemStore(), routes, positions, testConfig())

	parts := []event.Participant{
		{EventID: "ev1", UserID: "u1", Profile: event.ProfileBike},
		{EventID: "ev1", UserID: "u2"}, // no override, falls back to config default
	}
	if _, err := agg.Aggregate(context.Background(), testEvent(), parts, now); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	profiles := map[string]bool{}
	for _, p := range seen {
		profiles[p] = true
	}
	if !profiles["bike"] || !profiles["car"] {
		t.Fatalf("expected profiles bike and car to be used, got %v", seen)
	}
}

type recordingRoutes struct {
	inner  *fakeRoutes
	record func(profile string)
}

func (r *recordingRoutes) Estimate(ctx context.Context, origin, dest types.Point, profile string) (time.Duration, float64, error) {
	r.record(profile)
	return r.inner.Estimate(ctx, origin, dest, profile)
}
