package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/stayops/guest-insights/internal/geocode"
)

// rowString returns the first non-empty string value among the given
// columns, tolerating non-string cells.
func rowString(row Row, cols ...string) string {
	for _, col := range cols {
		switch v := row[col].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v != 0 {
				return strings.TrimSpace(fmt.Sprintf("%v", v))
			}
		case nil:
		default:
			if s := strings.TrimSpace(fmt.Sprintf("%v", v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func addressFields(row Row) geocode.AddressFields {
	return geocode.AddressFields{
		Street: rowString(row, ColAddress, "Address1"),
		City:   rowString(row, ColCity),
		State:  rowString(row, ColState),
		Zip:    rowString(row, ColZip),
	}
}

// DistanceEnricher annotates rows with driving distance and travel time
// from the property origin, trying address candidates most-specific first.
type DistanceEnricher struct {
	client *geocode.DistanceClient
}

// NewDistanceEnricher creates a distance enricher over the given client.
func NewDistanceEnricher(client *geocode.DistanceClient) *DistanceEnricher {
	return &DistanceEnricher{client: client}
}

func (d *DistanceEnricher) Kind() string         { return "distance" }
func (d *DistanceEnricher) TargetColumn() string { return ColDistanceMiles }
func (d *DistanceEnricher) Concurrency() int     { return 1 }

func (d *DistanceEnricher) Columns() []string {
	return []string{ColDistanceMiles, ColTravelTime, ColDrivingMinutes, ColOriginLat, ColOriginLng}
}

// Sentinel marks a row whose address could not be resolved: zero distance
// and a zeroed travel time, so the chunk never revisits it.
func (d *DistanceEnricher) Sentinel() map[string]any {
	return map[string]any{
		ColDistanceMiles:  0.0,
		ColTravelTime:     "0h 0m",
		ColDrivingMinutes: 0.0,
		ColOriginLat:      0.0,
		ColOriginLng:      0.0,
	}
}

func (d *DistanceEnricher) EnrichRow(ctx context.Context, row Row) (map[string]any, error) {
	candidates := geocode.Candidates(addressFields(row))
	if len(candidates) == 0 {
		// Empty address: nothing to look up, mark with the sentinel.
		return nil, nil
	}

	result, _, err := d.client.BestDistance(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("distance lookup: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	display, minutes := geocode.ParseTravelTime(result.TravelTimeText)
	return map[string]any{
		ColDistanceMiles:  result.Miles,
		ColTravelTime:     display,
		ColDrivingMinutes: minutes,
		ColOriginLat:      result.Origin.Latitude,
		ColOriginLng:      result.Origin.Longitude,
	}, nil
}

// GeocodeEnricher annotates rows with latitude/longitude. Rows that
// already carry coordinates are skipped via the target column check.
type GeocodeEnricher struct {
	client *geocode.Client
}

// NewGeocodeEnricher creates a geocode enricher over the given client.
func NewGeocodeEnricher(client *geocode.Client) *GeocodeEnricher {
	return &GeocodeEnricher{client: client}
}

func (g *GeocodeEnricher) Kind() string         { return "geocode" }
func (g *GeocodeEnricher) TargetColumn() string { return ColLatitude }
func (g *GeocodeEnricher) Concurrency() int     { return 1 }

func (g *GeocodeEnricher) Columns() []string {
	return []string{ColLatitude, ColLongitude}
}

// Sentinel marks an unresolvable address with zero coordinates.
func (g *GeocodeEnricher) Sentinel() map[string]any {
	return map[string]any{ColLatitude: 0.0, ColLongitude: 0.0}
}

func (g *GeocodeEnricher) EnrichRow(ctx context.Context, row Row) (map[string]any, error) {
	for _, candidate := range geocode.Candidates(addressFields(row)) {
		loc, err := g.client.Geocode(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("geocoding %q: %w", candidate, err)
		}
		if loc != nil {
			return map[string]any{
				ColLatitude:  loc.Latitude,
				ColLongitude: loc.Longitude,
			}, nil
		}
	}
	return nil, nil
}
