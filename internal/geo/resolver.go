// Package geo resolves countries and coordinates to IANA timezones
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Resolver maps a country name or coordinates to an IANA timezone.
// Implementations must return "UTC" instead of failing hard.
type Resolver interface {
	ZoneByCountry(ctx context.Context, country string) string
	ZoneByCoords(ctx context.Context, lat, lon float64) string
}

// GeoNamesResolver resolves timezones through the GeoNames REST API:
// searchJSON for country -> coordinates, timezoneJSON for coordinates -> zone.
type GeoNamesResolver struct {
	baseURL    string
	username   string
	httpClient *http.Client
}

// NewGeoNamesResolver creates a resolver. Every lookup is bounded by the
// client timeout; failures degrade to UTC rather than erroring.
func NewGeoNamesResolver(baseURL, username string) *GeoNamesResolver {
	return &GeoNamesResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// ZoneByCountry resolves a country name to its primary timezone.
func (r *GeoNamesResolver) ZoneByCountry(ctx context.Context, country string) string {
	lat, lon, err := r.searchCountry(ctx, country)
	if err != nil {
		log.Printf("Timezone lookup for %q failed, defaulting to UTC: %v", country, err)
		return "UTC"
	}
	return r.ZoneByCoords(ctx, lat, lon)
}

// ZoneByCoords resolves coordinates to a timezone.
func (r *GeoNamesResolver) ZoneByCoords(ctx context.Context, lat, lon float64) string {
	apiURL := fmt.Sprintf("%s/timezoneJSON?lat=%f&lng=%f&username=%s",
		r.baseURL, lat, lon, url.QueryEscape(r.username))

	var result struct {
		TimezoneID string `json:"timezoneId"`
	}
	if err := r.getJSON(ctx, apiURL, &result); err != nil {
		log.Printf("Timezone lookup for (%f, %f) failed, defaulting to UTC: %v", lat, lon, err)
		return "UTC"
	}
	if result.TimezoneID == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(result.TimezoneID); err != nil {
		log.Printf("GeoNames returned unknown zone %q, defaulting to UTC", result.TimezoneID)
		return "UTC"
	}
	return result.TimezoneID
}

func (r *GeoNamesResolver) searchCountry(ctx context.Context, country string) (float64, float64, error) {
	apiURL := fmt.Sprintf("%s/searchJSON?q=%s&maxRows=1&username=%s",
		r.baseURL, url.QueryEscape(country), url.QueryEscape(r.username))

	var result struct {
		Geonames []struct {
			Lat string `json:"lat"`
			Lng string `json:"lng"`
		} `json:"geonames"`
	}
	if err := r.getJSON(ctx, apiURL, &result); err != nil {
		return 0, 0, err
	}
	if len(result.Geonames) == 0 {
		return 0, 0, fmt.Errorf("no results for %q", country)
	}

	var lat, lon float64
	if _, err := fmt.Sscanf(result.Geonames[0].Lat, "%f", &lat); err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q", result.Geonames[0].Lat)
	}
	if _, err := fmt.Sscanf(result.Geonames[0].Lng, "%f", &lon); err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q", result.Geonames[0].Lng)
	}
	return lat, lon, nil
}

func (r *GeoNamesResolver) getJSON(ctx context.Context, apiURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
