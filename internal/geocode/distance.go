package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stayops/guest-insights/internal/config"
	"github.com/stayops/guest-insights/internal/pkg/httpretry"
)

// DriveResult is one driving-distance lookup from the property origin to
// a guest address.
type DriveResult struct {
	Miles          float64     `json:"distance_miles"`
	TravelTimeText string      `json:"travel_time"`
	Origin         Coordinates `json:"origin"`
}

// DistanceClient is a driving-distance API client.
type DistanceClient struct {
	baseURL    string
	apiKey     string
	origin     string
	httpClient httpretry.HTTPDoer
}

// NewDistanceClient creates a new driving-distance client. origin is the
// property address all distances are measured from.
func NewDistanceClient(cfg config.DistanceConfig, origin string) *DistanceClient {
	return &DistanceClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		origin:  origin,
		httpClient: httpretry.NewPacedClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 0, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *DistanceClient) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Distance looks up the driving distance from the property origin to the
// destination address. A reachable provider that finds no route returns a
// zero-mile result; callers treat that as "try the next candidate".
func (c *DistanceClient) Distance(ctx context.Context, destination string) (*DriveResult, error) {
	params := url.Values{}
	params.Set("origin", c.origin)
	params.Set("destination", destination)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result DriveResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing distance response: %w", err)
	}

	return &result, nil
}

// BestDistance tries each address candidate in order and returns the first
// nonzero-distance result, along with the candidate that produced it.
// A nil result means no candidate resolved.
func (c *DistanceClient) BestDistance(ctx context.Context, candidates []string) (*DriveResult, string, error) {
	var lastErr error
	for _, addr := range candidates {
		result, err := c.Distance(ctx, addr)
		if err != nil {
			lastErr = err
			continue
		}
		if result != nil && result.Miles > 0 {
			return result, addr, nil
		}
	}
	return nil, "", lastErr
}
