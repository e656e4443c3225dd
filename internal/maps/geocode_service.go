// README: Forward geocoding for event addresses.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"rally/internal/types"
)

// GeocodeService resolves free-form addresses to coordinates so events can be
// created without the client supplying lat/lng.
type GeocodeService struct {
	client *maps.Client
}

func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// Locate returns the best-match coordinate for the address.
func (s *GeocodeService) Locate(ctx context.Context, address string) (types.Point, error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return types.Point{}, fmt.Errorf("geocode api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("address not found: %s", address)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
