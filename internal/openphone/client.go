package openphone

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

// Client is a communications provider API client scoped to one API key.
// A deployment may run several clients, one per provider account.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a provider client for a single API key. Requests are
// paced and retried on 429 according to the provider configuration.
func NewClient(cfg config.OpenPhoneConfig, apiKey string) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		httpClient: httpretry.NewPacedClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, cfg.RequestSpacing(), cfg.MaxRetries),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest makes an authenticated GET request to the provider API
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

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

	return body, nil
}

// ListPhoneNumbers fetches all phone numbers (channels) on the account.
func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	body, err := c.doRequest(ctx, "/phone-numbers", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching phone numbers: %w", err)
	}

	var response page[PhoneNumber]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing phone numbers: %w", err)
	}

	return response.Data, nil
}
