package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

const geocodeEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNotFound is returned when a place name resolves to zero matches.
var ErrNotFound = errors.New("location not found")

// Location is a resolved place.
type Location struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formattedAddress"`
	PlaceID          string  `json:"placeId"`
	LocationType     string  `json:"locationType"`
}

// GeoClient resolves free-text place names through the Google Geocoding API.
type GeoClient struct {
	apiKey   string
	Endpoint string
	http     *HTTPClient
}

func NewGeoClient(apiKey string, httpc *HTTPClient) *GeoClient {
	return &GeoClient{apiKey: apiKey, Endpoint: geocodeEndpoint, http: httpc}
}

// Geocode resolves place to coordinates. Re-running with the same place
// against an unchanged upstream yields the same result.
func (g *GeoClient) Geocode(ctx context.Context, place string) (Location, error) {
	u := fmt.Sprintf("%s?address=%s&key=%s", g.Endpoint, url.QueryEscape(place), url.QueryEscape(g.apiKey))

	var raw struct {
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
			PlaceID          string `json:"place_id"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
				LocationType string `json:"location_type"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := g.http.DoJSON(ctx, "GET", u, nil, nil, &raw); err != nil {
		return Location{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	if len(raw.Results) == 0 {
		return Location{}, fmt.Errorf("geocode %q: %w", place, ErrNotFound)
	}

	r := raw.Results[0]
	return Location{
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
		PlaceID:          r.PlaceID,
		LocationType:     r.Geometry.LocationType,
	}, nil
}
