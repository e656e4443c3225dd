// README: Route estimation backed by the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"rally/internal/types"
)

// ErrNoRoute is returned when the Directions API yields no usable route.
// Callers treat it the same as any other provider failure: the estimate is
// unavailable, nothing more.
var ErrNoRoute = fmt.Errorf("no route found")

// RouteService wraps Google Maps Directions calls. It performs no retries;
// a failed call is reported to the caller as-is so aggregation latency stays
// bounded.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns travel time and distance in meters from origin to dest
// for the given travel profile (car, bike or foot; anything else falls back
// to car).
func (s *RouteService) Estimate(ctx context.Context, origin, dest types.Point, profile string) (time.Duration, float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        travelMode(profile),
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, 0, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return leg.Duration, float64(leg.Distance.Meters), nil
}

func travelMode(profile string) maps.Mode {
	switch profile {
	case "bike":
		return maps.TravelModeBicycling
	case "foot":
		return maps.TravelModeWalking
	default:
		return maps.TravelModeDriving
	}
}
