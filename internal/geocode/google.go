package geocode

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"ridesync/internal/domain/entities"
)

// Google resolves places through the Google Maps Geocoding API.
type Google struct {
	client *maps.Client
}

func NewGoogle(apiKey string) (*Google, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return &Google{client: client}, nil
}

func (g *Google) Search(ctx context.Context, query string) (Place, error) {
	resp, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		return Place{}, fmt.Errorf("geocoding failed: %w", err)
	}
	if len(resp) == 0 {
		return Place{}, ErrNoMatch
	}
	return toPlace(resp[0]), nil
}

func (g *Google) Reverse(ctx context.Context, loc entities.Location) (Place, error) {
	resp, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: loc.Latitude, Lng: loc.Longitude},
	})
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(resp) == 0 {
		return Place{}, ErrNoMatch
	}
	return toPlace(resp[0]), nil
}

func toPlace(r maps.GeocodingResult) Place {
	return Place{
		Name:     shortLabel(r.FormattedAddress),
		Location: entities.NewLocation(r.Geometry.Location.Lat, r.Geometry.Location.Lng),
	}
}

// shortLabel keeps the first two parts of a formatted address, e.g.
// "1 Market St, San Francisco, CA 94105, USA" -> "1 Market St, San Francisco".
func shortLabel(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(address)
	}
	return strings.TrimSpace(parts[0]) + ", " + strings.TrimSpace(parts[1])
}
