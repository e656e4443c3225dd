// README: Pure arrival decision policy (threshold + time window).
package arrival

import "time"

const (
	// ArriveRadiusM is the proximity threshold for an arrival decision.
	ArriveRadiusM = 200.0
	// ArriveWindow is how long before the scheduled arrival instant a
	// proximity match may fire.
	ArriveWindow = time.Hour
)

type Decision int

const (
	// SkipNoQuery means no routing query is needed: the participant already
	// arrived, or the event is not scheduled today.
	SkipNoQuery Decision = iota
	// Pending means the participant is en route; surface ETA/distance when
	// known, otherwise a routing query is still required.
	Pending
	// MarkArrived means the participant crossed the threshold inside the
	// arrival window; record it.
	MarkArrived
)

// Decide applies the arrival policy. It is pure: no I/O, no side effects.
// distanceM is nil before a routing query has been made for this pass.
//
// Both boundary comparisons are inclusive: exactly 200 m at exactly one hour
// before the scheduled arrival marks the participant as arrived. That defines
// the observable arrival moment and is covered by tests.
func Decide(alreadyArrived, eventToday bool, distanceM *float64, now, eventArrival time.Time) Decision {
	if alreadyArrived {
		return SkipNoQuery
	}
	if !eventToday {
		return SkipNoQuery
	}
	if distanceM == nil {
		return Pending
	}
	if *distanceM <= ArriveRadiusM && !now.Before(eventArrival.Add(-ArriveWindow)) {
		return MarkArrived
	}
	return Pending
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
